package usecase

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateUniqueNameUnusedBase(t *testing.T) {
	require.Equal(t, "Strategy", GenerateUniqueName("Strategy", nil))
	require.Equal(t, "Strategy", GenerateUniqueName("Strategy", []string{"Other"}))
}

func TestGenerateUniqueNameAppendsCopy(t *testing.T) {
	require.Equal(t, "Strategy copy", GenerateUniqueName("Strategy", []string{"Strategy"}))
}

func TestGenerateUniqueNameCopyCollision(t *testing.T) {
	// Copy of the active strategy "Strategy" when both "Strategy" and
	// "Strategy copy" already exist.
	got := GenerateUniqueName("Strategy", []string{"Strategy", "Strategy copy"})
	require.Equal(t, "Strategy copy 1", got)
}

func TestGenerateUniqueNameBaseEndsInCopy(t *testing.T) {
	got := GenerateUniqueName("Strategy copy", []string{"Strategy copy"})
	require.Equal(t, "Strategy copy 1", got)

	got = GenerateUniqueName("Strategy copy", []string{"Strategy copy", "Strategy copy 1"})
	require.Equal(t, "Strategy copy 2", got)
}

func TestGenerateUniqueNameNeverCollidesAndTerminates(t *testing.T) {
	existing := []string{"S"}
	for i := 1; i <= 50; i++ {
		existing = append(existing, fmt.Sprintf("S copy %d", i))
	}
	existing = append(existing, "S copy")

	got := GenerateUniqueName("S", existing)
	for _, name := range existing {
		require.NotEqual(t, name, got)
	}
	require.Equal(t, "S copy 51", got)

	// Deterministic.
	require.Equal(t, got, GenerateUniqueName("S", existing))
}
