package categorization

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/privilegia/privilegia-backend/pkg/enums"
)

type fakeGenerator struct {
	reply  string
	err    error
	prompt string
	block  bool
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompt = prompt
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.reply, f.err
}

func TestCategorizeParsesModelOutput(t *testing.T) {
	gen := &fakeGenerator{reply: " Wellness.\n"}
	svc := NewService(gen, time.Second, nil)

	got := svc.Categorize(context.Background(), "Massage -30%", "Relax at our spa")
	assert.Equal(t, enums.OfferCategoryWellness, got)
	assert.True(t, strings.Contains(gen.prompt, "Massage -30%"))
	assert.True(t, strings.Contains(gen.prompt, "restaurant"))
}

func TestCategorizeFallsBackToGeneral(t *testing.T) {
	cases := map[string]*Service{
		"nil generator":  NewService(nil, 0, nil),
		"error":          NewService(&fakeGenerator{err: errors.New("quota")}, time.Second, nil),
		"unknown answer": NewService(&fakeGenerator{reply: "automotive"}, time.Second, nil),
		"empty answer":   NewService(&fakeGenerator{reply: "  "}, time.Second, nil),
		"timeout":        NewService(&fakeGenerator{block: true}, 10*time.Millisecond, nil),
	}
	for name, svc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, enums.OfferCategoryGeneral, svc.Categorize(context.Background(), "Pizza", ""))
		})
	}
}
