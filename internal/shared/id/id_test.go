package id

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUnique(t *testing.T) {
	gen := NewGenerator()

	id1 := gen.Generate()
	id2 := gen.Generate()

	assert.NotEqual(t, id1.String(), id2.String())
	assert.Len(t, id1.String(), 26)
}

func TestNewViewID(t *testing.T) {
	v := NewViewID()

	assert.True(t, strings.HasPrefix(v.String(), "view_"))
	assert.True(t, IsValidView(v.String()))

	created, err := v.CreatedAt()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), created, 5*time.Second)
}

func TestNewRequestID(t *testing.T) {
	r := NewRequestID()

	assert.True(t, IsValidRequest(r.String()))
	assert.NotEqual(t, r, NewRequestID())
}

func TestIsValidView(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"valid", NewViewID().String(), true},
		{"missing prefix", Default().Generate().String(), false},
		{"wrong prefix", "app_" + Default().Generate().String(), false},
		{"garbage", "view_not-a-ulid", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidView(tt.input))
		})
	}
}

func TestConcurrentViewIDs(t *testing.T) {
	const workers = 8
	const perWorker = 200

	var mu sync.Mutex
	seen := make(map[ViewID]struct{}, workers*perWorker)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				v := NewViewID()
				mu.Lock()
				seen[v] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
}
