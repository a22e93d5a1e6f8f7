// Package storage provides the persistent key-value store contract used to
// persist bot state between turns, with memory, file, Redis, SQLite, and
// MongoDB backends.
//
// Items are JSON object graphs keyed by opaque strings. The core only
// requires read-your-writes consistency within a turn; cross-conversation
// atomicity is delegated to the backend.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrStoreClosed  = errors.New("store is closed")
	ErrInvalidInput = errors.New("invalid input")
)

// BackendType represents the type of storage backend.
type BackendType string

const (
	BackendMemory BackendType = "memory"
	BackendFile   BackendType = "file"
	BackendRedis  BackendType = "redis"
	BackendSQLite BackendType = "sqlite"
	BackendMongo  BackendType = "mongo"
)

// Storage is the narrow persistence contract the dialog core depends on.
// Read returns only the keys that exist; missing keys are simply absent
// from the result, never an error.
type Storage interface {
	Read(ctx context.Context, keys []string) (map[string]map[string]any, error)
	Write(ctx context.Context, changes map[string]map[string]any) error
	Delete(ctx context.Context, keys []string) error
	Close() error
}

// Config selects and configures a storage backend.
type Config struct {
	// Type is the storage backend type.
	Type BackendType `json:"type" yaml:"type"`

	// Dir is the base directory for file-based storage.
	Dir string `json:"dir" yaml:"dir"`

	// Redis configuration (only used when Type is "redis").
	Redis RedisConfig `json:"redis" yaml:"redis"`

	// SQLite configuration (only used when Type is "sqlite").
	SQLite SQLiteConfig `json:"sqlite" yaml:"sqlite"`

	// Mongo configuration (only used when Type is "mongo").
	Mongo MongoConfig `json:"mongo" yaml:"mongo"`
}

// DefaultConfig returns the default storage configuration.
func DefaultConfig() Config {
	return Config{
		Type: BackendMemory,
		Dir:  "./data/state",
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			DB:        0,
			PoolSize:  10,
			KeyPrefix: "convoflow:",
		},
		SQLite: SQLiteConfig{Path: "convoflow.db"},
		Mongo: MongoConfig{
			URI:        "mongodb://localhost:27017",
			Database:   "convoflow",
			Collection: "botstate",
		},
	}
}

// New creates a storage backend from configuration.
func New(cfg Config, logger *zap.Logger) (Storage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Type {
	case BackendMemory, "":
		return NewMemoryStorage(), nil
	case BackendFile:
		return NewFileStorage(cfg.Dir)
	case BackendRedis:
		return NewRedisStorage(cfg.Redis, logger)
	case BackendSQLite:
		return NewSQLiteStorage(cfg.SQLite, logger)
	case BackendMongo:
		return NewMongoStorage(cfg.Mongo, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Type)
	}
}

// cloneItem makes a deep copy of an item so callers never share backing maps
// with the store.
func cloneItem(item map[string]any) (map[string]any, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("marshal item: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return out, nil
}
