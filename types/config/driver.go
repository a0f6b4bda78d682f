package config

import (
	"fmt"
	"strings"
)

type StorageDriver int

const (
	Postgres StorageDriver = iota + 1
	Memory
)

// String converts the StorageDriver enum to a human-readable string.
func (d StorageDriver) String() string {
	switch d {
	case Postgres:
		return "postgres"
	case Memory:
		return "memory"
	}
	return "unknown"
}

func ParseStorageDriver(s string) (StorageDriver, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgres", "postgresql":
		return Postgres, nil
	case "memory":
		return Memory, nil
	}
	return 0, fmt.Errorf("unknown storage driver %q", s)
}

type LockDriver int

const (
	PostgresLock LockDriver = iota + 1
	RedisLock
)

func (d LockDriver) String() string {
	switch d {
	case PostgresLock:
		return "postgres"
	case RedisLock:
		return "redis"
	}
	return "unknown"
}

func ParseLockDriver(s string) (LockDriver, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgres", "postgresql":
		return PostgresLock, nil
	case "redis":
		return RedisLock, nil
	}
	return 0, fmt.Errorf("unknown lock driver %q", s)
}
