package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

var builtinGlossary = map[string]string{
	"algorithm": "A step-by-step procedure for solving a problem or performing a computation.",
	"api":       "A set of rules that allows different software applications to communicate with each other.",
	"bug":       "An error or flaw in software that causes incorrect or unexpected results.",
	"cache":     "A temporary storage area used to speed up data access.",
	"compiler":  "A program that translates source code into executable machine code.",
	"database":  "An organized collection of structured information or data.",
	"debugging": "The process of identifying and fixing errors in software.",
	"framework": "A reusable software platform that provides a foundation for building applications.",
	"function":  "A reusable block of code that performs a specific task.",
	"git":       "A distributed version control system used to track changes in source code.",
	"interface": "A point of interaction between components, systems, or users.",
	"library":   "A collection of pre-written code that developers can reuse.",
	"loop":      "A programming construct that repeats a set of instructions until a condition is met.",
	"object":    "An instance of a class containing data and behavior.",
	"parameter": "A variable used to pass information into a function or method.",
	"runtime":   "The period during which a program is executing.",
	"syntax":    "The set of rules that defines the structure of a programming language.",
	"thread":    "A lightweight unit of execution within a process.",
	"variable":  "A named storage location used to hold data.",
	"version":   "A specific release or iteration of a software product.",
}

// Dictionary answers definitions from a fixed glossary of software terms.
type Dictionary struct {
	entries map[string]string
}

// NewDictionary creates the glossary, merging extra entries over the
// built-in ones. Keys are matched case-insensitively.
func NewDictionary(extra map[string]string) *Dictionary {
	entries := make(map[string]string, len(builtinGlossary)+len(extra))
	for k, v := range builtinGlossary {
		entries[k] = v
	}
	for k, v := range extra {
		entries[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return &Dictionary{entries: entries}
}

// Lookup returns the definition for word.
func (d *Dictionary) Lookup(word string) (string, bool) {
	def, ok := d.entries[strings.ToLower(strings.TrimSpace(word))]
	return def, ok
}

// Words returns every defined term, sorted.
func (d *Dictionary) Words() []string {
	words := make([]string, 0, len(d.entries))
	for w := range d.entries {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

// Spec declares check_dictionary.
func (d *Dictionary) Spec() Spec {
	return Spec{
		Name:        "check_dictionary",
		Description: "Look up the definition of a software or computer-science term and return the word with its meaning.",
		Parameters:  Object(map[string]any{"word": String("The word to look up")}, "word"),
		Handler:     d.handle,
	}
}

func (d *Dictionary) handle(_ context.Context, raw map[string]any) (string, error) {
	var args struct {
		Word string `mapstructure:"word"`
	}
	if err := DecodeArgs(raw, &args); err != nil {
		return "", err
	}
	word, err := requireString("word", args.Word)
	if err != nil {
		return "", err
	}

	if def, ok := d.Lookup(word); ok {
		return fmt.Sprintf("%s: %s", word, def), nil
	}
	return fmt.Sprintf("%s has no definition in my dictionary", word), nil
}
