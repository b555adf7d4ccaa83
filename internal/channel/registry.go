// Package channel manages the chat front-ends that feed the dispatcher.
package channel

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/olasquare/olasquare/internal/domain"
	"github.com/olasquare/olasquare/internal/logging"
)

// Registry holds the configured channels and runs them.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]domain.Channel
	exitErrs map[string]string
	wg       sync.WaitGroup
	log      *logging.Logger
}

// NewRegistry creates a channel registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		channels: make(map[string]domain.Channel),
		exitErrs: make(map[string]string),
		log:      log.Sub("channels"),
	}
}

// Register adds a channel, replacing any with the same id.
func (r *Registry) Register(ch domain.Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[ch.ID()] = ch
	r.log.Info().Str("channel", ch.ID()).Msg("channel registered")
}

// Get returns a channel by id.
func (r *Registry) Get(id string) (domain.Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[id]
	return ch, ok
}

// List returns the registered channel ids, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.channels))
	for id := range r.channels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Status reports every channel, sorted by id. Channels that do not report
// their own status are shown as running until Start returns.
func (r *Registry) Status() []domain.ChannelStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	statuses := make([]domain.ChannelStatus, 0, len(r.channels))
	for id, ch := range r.channels {
		if sc, ok := ch.(interface{ Status() domain.ChannelStatus }); ok {
			statuses = append(statuses, sc.Status())
			continue
		}
		lastErr, exited := r.exitErrs[id]
		statuses = append(statuses, domain.ChannelStatus{
			ChannelID: id,
			Running:   !exited,
			LastError: lastErr,
		})
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].ChannelID < statuses[j].ChannelID })
	return statuses
}

// StartAll launches every channel in its own goroutine. Start blocks for
// the lifetime of a connection, so exits are logged rather than returned;
// use Wait to block until all channels have stopped.
func (r *Registry) StartAll(ctx context.Context) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, ch := range r.channels {
		id, ch := id, ch
		r.log.Info().Str("channel", id).Msg("starting channel")
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			err := ch.Start(ctx)
			r.recordExit(id, err)
		}()
	}
}

func (r *Registry) recordExit(id string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		r.exitErrs[id] = ""
		r.log.Info().Str("channel", id).Msg("channel stopped")
	default:
		r.exitErrs[id] = err.Error()
		r.log.Error().Err(err).Str("channel", id).Msg("channel exited with error")
	}
}

// Wait blocks until every channel started by StartAll has returned.
func (r *Registry) Wait() {
	r.wg.Wait()
}

// StopAll stops every channel and returns the joined stop errors.
func (r *Registry) StopAll(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for id, ch := range r.channels {
		r.log.Info().Str("channel", id).Msg("stopping channel")
		if err := ch.Stop(ctx); err != nil {
			r.log.Error().Err(err).Str("channel", id).Msg("failed to stop channel")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Count returns the number of registered channels.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}
