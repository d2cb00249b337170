package api

import (
	"net/url"
	"testing"

	apperrors "grant-intake/internal/common/errors"
	"grant-intake/internal/models"
	"grant-intake/internal/search"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListFilterFrom(t *testing.T) {
	f, err := listFilterFrom(url.Values{"status": {"submitted"}, "limit": {"10"}, "offset": {"20"}}, 50)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, f.Status)
	assert.Equal(t, 10, f.Limit)
	assert.Equal(t, 20, f.Offset)

	f, err = listFilterFrom(url.Values{}, 50)
	require.NoError(t, err)
	assert.Equal(t, 50, f.Limit)

	tests := []url.Values{
		{"status": {"archived"}},
		{"limit": {"-1"}},
		{"limit": {"501"}},
		{"offset": {"-5"}},
		{"offset": {"ten"}},
	}
	for _, q := range tests {
		_, err := listFilterFrom(q, 50)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput, q.Encode())
	}
}

func TestSearchQueryFrom(t *testing.T) {
	q, err := searchQueryFrom(url.Values{"q": {"water"}, "minScore": {"8"}})
	require.NoError(t, err)
	assert.Equal(t, "water", q.Text)
	assert.Equal(t, 8, q.MinScore)
	assert.Equal(t, search.DefaultSize, q.Size)

	_, err = searchQueryFrom(url.Values{"size": {"1000"}})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = searchQueryFrom(url.Values{"minScore": {"-1"}})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
