package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"engagement-advisor/internal/domain/entity"
)

type fakeTool struct {
	name entity.ToolName
}

func (f fakeTool) Name() entity.ToolName { return f.name }
func (f fakeTool) Description() string   { return "desc " + string(f.name) }
func (f fakeTool) Parameters() map[string]interface{} {
	return map[string]interface{}{"type": "object"}
}
func (f fakeTool) Execute(ctx context.Context, args string) (string, error) {
	return string(f.name), nil
}

func TestToolRegistry(t *testing.T) {
	r := NewToolRegistry(fakeTool{name: entity.ToolExecuteCode})
	r.Register(fakeTool{name: entity.ToolCurrentTime})

	tool, ok := r.Get(entity.ToolCurrentTime)
	require.True(t, ok)
	assert.Equal(t, entity.ToolCurrentTime, tool.Name())

	_, ok = r.Get("navigate")
	assert.False(t, ok)

	defs := r.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "current_time", defs[0].Name)
	assert.Equal(t, "execute_code", defs[1].Name)
	assert.Equal(t, "desc execute_code", defs[1].Description)
}

func TestToolRegistry_RegisterReplaces(t *testing.T) {
	r := NewToolRegistry(fakeTool{name: entity.ToolCurrentTime}, fakeTool{name: entity.ToolCurrentTime})
	assert.Len(t, r.All(), 1)
}
