package blob

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentType(t *testing.T) {
	tt := []struct {
		ext  string
		want string
		err  error
	}{
		{ext: "jpg", want: "image/jpeg"},
		{ext: ".JPEG", want: "image/jpeg"},
		{ext: "png", want: "image/png"},
		{ext: "webp", want: "image/webp"},
		{ext: ".gif", want: "image/gif"},
		{ext: "heic", err: ErrUnsupportedType},
		{ext: "", err: ErrUnsupportedType},
	}

	for i := range tt {
		tc := tt[i]
		t.Run(tc.ext, func(t *testing.T) {
			got, err := ContentType(tc.ext)
			if tc.err != nil {
				assert.True(t, errors.Is(err, tc.err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPostImagePath(t *testing.T) {
	now := time.Unix(1700000000, 123000000)

	p := PostImagePath("alice", ".PNG", now)
	assert.Regexp(t, regexp.MustCompile(`^posts/alice/1700000000123_[0-9a-f]{10}\.png$`), p)
	assert.NotEqual(t, p, PostImagePath("alice", ".PNG", now))

	assert.Regexp(t, regexp.MustCompile(`^profile_images/alice_1700000000123_[0-9a-f]{10}\.jpg$`), ProfileImagePath("alice", "", now))
}
