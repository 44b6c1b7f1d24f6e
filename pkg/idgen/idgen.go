package idgen

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/sonyflake"

	"github.com/mbeoliero/chatsync/pkg/constant"
)

// Generator produces provisional message ids. A provisional id is the local
// placeholder used until the server confirms persistence and assigns the
// durable id.
type Generator interface {
	// NextProvisionalId generates a new provisional message id
	NextProvisionalId() (string, error)
}

// IsProvisional reports whether id is a client-generated provisional id
// rather than a server-confirmed one.
func IsProvisional(id string) bool {
	return strings.HasPrefix(id, constant.ProvisionalIdPrefix)
}

// SonyflakeGenerator implements Generator using sonyflake
type SonyflakeGenerator struct {
	sf *sonyflake.Sonyflake
}

// NewSonyflakeGenerator creates a new SonyflakeGenerator
func NewSonyflakeGenerator(machineID uint16) (*SonyflakeGenerator, error) {
	st := sonyflake.Settings{
		StartTime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		MachineID: func() (uint16, error) {
			return machineID, nil
		},
	}

	sf, err := sonyflake.New(st)
	if err != nil {
		return nil, fmt.Errorf("failed to create sonyflake: %w", err)
	}

	return &SonyflakeGenerator{sf: sf}, nil
}

// NextProvisionalId generates a new provisional id
func (g *SonyflakeGenerator) NextProvisionalId() (string, error) {
	id, err := g.sf.NextID()
	if err != nil {
		return "", fmt.Errorf("failed to generate id: %w", err)
	}
	return fmt.Sprintf("%s%d", constant.ProvisionalIdPrefix, id), nil
}

// UUIDGenerator implements Generator using UUID v4. Used as a fallback when
// sonyflake cannot be initialized (e.g. no private IP available).
type UUIDGenerator struct{}

// NewUUIDGenerator creates a new UUIDGenerator
func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

// NextProvisionalId generates a new provisional id
func (g *UUIDGenerator) NextProvisionalId() (string, error) {
	return constant.ProvisionalIdPrefix + uuid.New().String(), nil
}

// Global default generator
var (
	defaultGenerator Generator
	once             sync.Once
)

// SetDefaultGenerator sets the default id generator
func SetDefaultGenerator(gen Generator) {
	defaultGenerator = gen
}

// GetDefaultGenerator returns the default id generator.
// If not set, tries sonyflake with machineID 1 and falls back to UUID.
func GetDefaultGenerator() Generator {
	once.Do(func() {
		if defaultGenerator == nil {
			gen, err := NewSonyflakeGenerator(1)
			if err != nil {
				defaultGenerator = NewUUIDGenerator()
				return
			}
			defaultGenerator = gen
		}
	})
	return defaultGenerator
}

// NextProvisionalId generates a new provisional id using the default generator
func NextProvisionalId() (string, error) {
	return GetDefaultGenerator().NextProvisionalId()
}
