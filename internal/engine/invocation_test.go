package engine

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator_Generate(t *testing.T) {
	gen := UUIDv7Generator{}

	seen := make(map[string]bool)
	var prev string
	for i := 0; i < 100; i++ {
		id := gen.Generate()
		parsed, err := uuid.Parse(id)
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(7), parsed.Version())
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
		if prev != "" {
			assert.GreaterOrEqual(t, id, prev, "UUIDv7 ids sort by creation time")
		}
		prev = id
	}
}

// counter numbers invocations "inv-1", "inv-2", ...
func counter() GeneratorFunc {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("inv-%d", n.Add(1)) }
}

func TestGeneratorFunc(t *testing.T) {
	var gen InvocationGenerator = counter()
	assert.Equal(t, "inv-1", gen.Generate())
	assert.Equal(t, "inv-2", gen.Generate())
}
