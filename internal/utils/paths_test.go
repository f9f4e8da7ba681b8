package utils

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRemotePath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"root slash", "/", ""},
		{"simple", "backup", "backup"},
		{"leading slash", "/backup", "backup"},
		{"trailing slash", "backup/", "backup"},
		{"both slashes", "/backup/photos/", "backup/photos"},
		{"duplicate slashes", "backup//photos///2024", "backup/photos/2024"},
		{"backslashes", "backup\\photos\\2024", "backup/photos/2024"},
		{"mixed separators", "backup\\photos//2024", "backup/photos/2024"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeRemotePath(tt.input))
		})
	}
}

func TestJoinRemote(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		rel      string
		expected string
	}{
		{"both empty", "", "", ""},
		{"empty base", "", "a.txt", "a.txt"},
		{"empty rel", "backup", "", "backup"},
		{"simple", "backup", "d/b.txt", "backup/d/b.txt"},
		{"unnormalized base", "/backup/", "d/b.txt", "backup/d/b.txt"},
		{"unnormalized rel", "backup", "/d//b.txt", "backup/d/b.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, JoinRemote(tt.base, tt.rel))
		})
	}
}

func TestParentRemoteDir(t *testing.T) {
	assert.Equal(t, "", ParentRemoteDir("a.txt"))
	assert.Equal(t, "backup", ParentRemoteDir("backup/a.txt"))
	assert.Equal(t, "backup/d", ParentRemoteDir("backup/d/b.txt"))
	assert.Equal(t, "", ParentRemoteDir(""))
}

func TestSplitRemotePath(t *testing.T) {
	assert.Nil(t, SplitRemotePath(""))
	assert.Equal(t, []string{"backup"}, SplitRemotePath("backup"))
	assert.Equal(t, []string{"backup", "d"}, SplitRemotePath("backup/d"))
}

func TestEncodeRemotePath(t *testing.T) {
	assert.Equal(t, "", EncodeRemotePath(""))
	assert.Equal(t, "backup/a.txt", EncodeRemotePath("backup/a.txt"))
	assert.Equal(t, "backup/with%20space/f%23.txt", EncodeRemotePath("backup/with space/f#.txt"))
	assert.Equal(t, "umlaut%C3%A4", EncodeRemotePath("umlautä"))
}

func TestRetryWithBackoffSucceedsAfterFailures(t *testing.T) {
	attempts := 0
	cfg := &RetryConfig{MaxRetries: 3, InitialDelay: 1, MaxDelay: 1, Multiplier: 1.0}
	err := RetryWithBackoff(context.Background(), cfg, nil, func() error {
		attempts++
		if attempts < 3 {
			return assert.AnError
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithBackoffExhaustsBudget(t *testing.T) {
	cfg := &RetryConfig{MaxRetries: 2, InitialDelay: 1, MaxDelay: 1, Multiplier: 1.0}
	attempts := 0
	err := RetryWithBackoff(context.Background(), cfg, nil, func() error {
		attempts++
		return assert.AnError
	})
	assert.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithBackoffStopsOnNonRetryable(t *testing.T) {
	attempts := 0
	notRetryable := func(error) bool { return false }
	err := RetryWithBackoff(context.Background(), MkcolRetryConfig(), notRetryable, func() error {
		attempts++
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, attempts)
}
