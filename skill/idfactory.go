// Package skill lets a bot hand a conversation over to a remote skill bot
// and route turns back and forth until the skill signals completion.
package skill

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/convoflow/convoflow/types"
)

// IDFactory issues the conversation ids used when talking to a skill and
// resolves them back to the original conversation.
type IDFactory interface {
	// CreateConversationID issues a new skill conversation id for the
	// reference.
	CreateConversationID(ctx context.Context, ref *types.SkillConversationReference) (string, error)

	// GetConversationReference resolves a skill conversation id issued by
	// CreateConversationID.
	GetConversationReference(ctx context.Context, skillConversationID string) (*types.SkillConversationReference, error)

	// DeleteConversationReference forgets a skill conversation id once the
	// skill conversation is over.
	DeleteConversationReference(ctx context.Context, skillConversationID string) error
}

// MemoryIDFactory keeps issued conversation ids in memory. Suitable for a
// single process; production deployments back this with shared storage.
type MemoryIDFactory struct {
	mu   sync.Mutex
	refs map[string]*types.SkillConversationReference
}

// NewMemoryIDFactory creates an empty in-memory factory.
func NewMemoryIDFactory() *MemoryIDFactory {
	return &MemoryIDFactory{refs: map[string]*types.SkillConversationReference{}}
}

func (f *MemoryIDFactory) CreateConversationID(ctx context.Context, ref *types.SkillConversationReference) (string, error) {
	if ref == nil {
		return "", types.NewError(types.ErrInvalidArgument, "conversation reference must not be nil")
	}
	id := uuid.NewString()
	f.mu.Lock()
	f.refs[id] = ref
	f.mu.Unlock()
	return id, nil
}

func (f *MemoryIDFactory) GetConversationReference(ctx context.Context, skillConversationID string) (*types.SkillConversationReference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ref, ok := f.refs[skillConversationID]
	if !ok {
		return nil, types.NewErrorf(types.ErrConversationID, "unknown skill conversation id %q", skillConversationID)
	}
	return ref, nil
}

func (f *MemoryIDFactory) DeleteConversationReference(ctx context.Context, skillConversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.refs, skillConversationID)
	return nil
}
