// Package state manages the persisted conversation and user state bags that
// back the dialog memory scopes. Each BotState caches its bag in the turn
// context on first load and flushes it back to storage at end of turn.
package state

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/convoflow/convoflow/storage"
	"github.com/convoflow/convoflow/types"
)

// KeyFunc derives the storage key for a turn. Distinct conversations and
// users must map to distinct keys.
type KeyFunc func(tc *types.TurnContext) (string, error)

// cachedState is what a BotState parks in the turn context between load and
// save: the live bag plus the hash taken at load time.
type cachedState struct {
	bag  map[string]any
	hash string
}

// BotState is one named, storage-backed state bag ("conversation", "user").
type BotState struct {
	name    string
	storage storage.Storage
	keyFn   KeyFunc
}

// NewBotState creates a state bag with a custom key derivation.
func NewBotState(name string, store storage.Storage, keyFn KeyFunc) *BotState {
	return &BotState{name: name, storage: store, keyFn: keyFn}
}

// NewConversationState creates the per-conversation state bag.
func NewConversationState(store storage.Storage) *BotState {
	return NewBotState("ConversationState", store, func(tc *types.TurnContext) (string, error) {
		a := tc.Activity()
		if a == nil || a.Conversation == nil || a.Conversation.ID == "" {
			return "", types.NewError(types.ErrInvalidArgument, "activity is missing a conversation id")
		}
		return fmt.Sprintf("%s/conversations/%s", a.ChannelID, a.Conversation.ID), nil
	})
}

// NewUserState creates the per-user state bag.
func NewUserState(store storage.Storage) *BotState {
	return NewBotState("UserState", store, func(tc *types.TurnContext) (string, error) {
		a := tc.Activity()
		if a == nil || a.From == nil || a.From.ID == "" {
			return "", types.NewError(types.ErrInvalidArgument, "activity is missing a from id")
		}
		return fmt.Sprintf("%s/users/%s", a.ChannelID, a.From.ID), nil
	})
}

// Name returns the state bag name, which doubles as its memory scope name
// prefix and turn-state cache key.
func (b *BotState) Name() string { return b.name }

// Load reads the bag from storage, caching it in the turn context. Repeated
// loads within a turn return the cached bag unless force is set.
func (b *BotState) Load(ctx context.Context, tc *types.TurnContext, force bool) (map[string]any, error) {
	if cached, ok := tc.GetState(b.name); ok && !force {
		return cached.(*cachedState).bag, nil
	}

	key, err := b.keyFn(tc)
	if err != nil {
		return nil, err
	}

	items, err := b.storage.Read(ctx, []string{key})
	if err != nil {
		return nil, types.NewErrorf(types.ErrStorageFailure, "load %s", b.name).WithCause(err)
	}
	bag := items[key]
	if bag == nil {
		bag = make(map[string]any)
	}

	tc.SetState(b.name, &cachedState{bag: bag, hash: changeHash(bag)})
	return bag, nil
}

// SaveChanges writes the cached bag back to storage if it changed since
// load, or unconditionally when force is set. A turn that never loaded the
// bag saves nothing.
func (b *BotState) SaveChanges(ctx context.Context, tc *types.TurnContext, force bool) error {
	cachedAny, ok := tc.GetState(b.name)
	if !ok {
		return nil
	}
	cached := cachedAny.(*cachedState)

	hash := changeHash(cached.bag)
	if !force && hash == cached.hash {
		return nil
	}

	key, err := b.keyFn(tc)
	if err != nil {
		return err
	}
	if err := b.storage.Write(ctx, map[string]map[string]any{key: cached.bag}); err != nil {
		return types.NewErrorf(types.ErrStorageFailure, "save %s", b.name).WithCause(err)
	}
	cached.hash = hash
	return nil
}

// ClearState empties the cached bag. The change reaches storage on the next
// SaveChanges.
func (b *BotState) ClearState(ctx context.Context, tc *types.TurnContext) error {
	if _, err := b.Load(ctx, tc, false); err != nil {
		return err
	}
	cachedAny, _ := tc.GetState(b.name)
	cached := cachedAny.(*cachedState)
	for k := range cached.bag {
		delete(cached.bag, k)
	}
	return nil
}

// Delete removes the persisted bag entirely.
func (b *BotState) Delete(ctx context.Context, tc *types.TurnContext) error {
	tc.DeleteState(b.name)
	key, err := b.keyFn(tc)
	if err != nil {
		return err
	}
	if err := b.storage.Delete(ctx, []string{key}); err != nil {
		return types.NewErrorf(types.ErrStorageFailure, "delete %s", b.name).WithCause(err)
	}
	return nil
}

// CreateProperty returns an accessor for one named slot in this bag.
func (b *BotState) CreateProperty(name string) *Property {
	return &Property{state: b, name: name}
}

// Property is an accessor for one named value inside a BotState bag.
type Property struct {
	state *BotState
	name  string
}

// Name returns the property name.
func (p *Property) Name() string { return p.name }

// Get returns the property value, materializing it with defaultFactory when
// absent. A nil defaultFactory yields nil for absent values.
func (p *Property) Get(ctx context.Context, tc *types.TurnContext, defaultFactory func() any) (any, error) {
	bag, err := p.state.Load(ctx, tc, false)
	if err != nil {
		return nil, err
	}
	if v, ok := bag[p.name]; ok {
		return v, nil
	}
	if defaultFactory == nil {
		return nil, nil
	}
	v := defaultFactory()
	bag[p.name] = v
	return v, nil
}

// Set stores the property value.
func (p *Property) Set(ctx context.Context, tc *types.TurnContext, value any) error {
	bag, err := p.state.Load(ctx, tc, false)
	if err != nil {
		return err
	}
	bag[p.name] = value
	return nil
}

// Delete removes the property value.
func (p *Property) Delete(ctx context.Context, tc *types.TurnContext) error {
	bag, err := p.state.Load(ctx, tc, false)
	if err != nil {
		return err
	}
	delete(bag, p.name)
	return nil
}

// SaveAll flushes every state bag in parallel at end of turn.
func SaveAll(ctx context.Context, tc *types.TurnContext, force bool, states ...*BotState) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range states {
		if s == nil {
			continue
		}
		g.Go(func() error { return s.SaveChanges(gctx, tc, force) })
	}
	return g.Wait()
}

// changeHash fingerprints a bag so unchanged state skips the storage write.
func changeHash(bag map[string]any) string {
	data, err := json.Marshal(bag)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
