package agent

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/olasquare/olasquare/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryThreadStore_AppendAndHistory(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryThreadStore()

	msgs, err := s.History(ctx, "none")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	require.NoError(t, s.Append(ctx, "t", domain.UserMessage("a"), domain.AssistantMessage("b", nil)))
	msgs, err = s.History(ctx, "t")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.False(t, msgs[0].Timestamp.IsZero())

	msgs[0].Content = "mutated"
	again, _ := s.History(ctx, "t")
	assert.Equal(t, "a", again[0].Content)

	assert.Error(t, s.Append(ctx, "", domain.UserMessage("x")))
}

func TestMemoryThreadStore_GetAndList(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryThreadStore()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrThreadNotFound)

	require.NoError(t, s.Append(ctx, "a", domain.UserMessage("1")))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, s.Append(ctx, "b", domain.UserMessage("1"), domain.UserMessage("2")))

	th, err := s.Get(ctx, "b")
	require.NoError(t, err)
	assert.Len(t, th.Messages, 2)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)
	assert.Equal(t, 2, list[0].MessageCount)
}

func TestMemoryThreadStore_ConcurrentThreads(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryThreadStore()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("t%d", i)
			for j := 0; j < 20; j++ {
				assert.NoError(t, s.Append(ctx, id, domain.UserMessage("x")))
			}
		}()
	}
	wg.Wait()

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 10)
	for _, sum := range list {
		assert.Equal(t, 20, sum.MessageCount)
	}
}

func TestPersonas(t *testing.T) {
	assert.Equal(t, []string{"assistant", "research", "support"}, PersonaNames())

	p, err := LookupPersona(" Support ")
	require.NoError(t, err)
	assert.Contains(t, p.Prompt, "Olasquare Gadget")
	assert.False(t, p.Allows("check_weather"))

	p, _ = LookupPersona("assistant")
	assert.True(t, p.Allows("check_weather"))
	assert.False(t, p.Allows("search_knowledge"))

	p, _ = LookupPersona("research")
	assert.True(t, p.Allows("search_knowledge"))
}
