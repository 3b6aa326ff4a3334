package priority

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type known map[string]bool

func (k known) Has(name string) bool { return k[name] }

func TestDefault(t *testing.T) {
	assert.Equal(t, []string{"openai", "claude"}, Default(" OpenAI , ,claude", true))
	assert.Equal(t, FreeFirst, Default("", true))
	assert.Equal(t, QualityFirst, Default("", false))
}

func TestGet_FiltersUnconfigured(t *testing.T) {
	p := New(known{"openai": true, "gemini": true}, []string{"claude", "openai", "bogus", "gemini"})
	assert.Equal(t, []string{"openai", "gemini"}, p.Get())
}

func TestSet(t *testing.T) {
	p := New(known{"openai": true, "gemini": true, "claude": true}, QualityFirst)

	require.NoError(t, p.Set([]string{"Gemini", "openai"}))
	assert.Equal(t, []string{"gemini", "openai"}, p.Get())
}

func TestSet_RejectsAndKeepsPrevious(t *testing.T) {
	p := New(known{"openai": true, "gemini": true}, []string{"openai", "gemini"})

	cases := map[string][]string{
		"empty":        nil,
		"unconfigured": {"openai", "claude"},
		"duplicate":    {"openai", "openai"},
	}
	for name, order := range cases {
		t.Run(name, func(t *testing.T) {
			err := p.Set(order)
			var invalid *InvalidError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, []string{"openai", "gemini"}, p.Get())
		})
	}
}

func TestSet_ConcurrentReaders(t *testing.T) {
	p := New(known{"openai": true, "gemini": true, "claude": true}, []string{"openai", "gemini", "claude"})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_ = p.Set([]string{"claude", "gemini", "openai"})
				_ = p.Set([]string{"openai", "gemini", "claude"})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				assert.Len(t, p.Get(), 3)
			}
		}()
	}
	wg.Wait()
}
