package transcode_test

import (
	"errors"
	"testing"

	"github.com/playhead/playhead/internal/domain"
	"github.com/playhead/playhead/internal/optional"
	"github.com/playhead/playhead/internal/transcode"
	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	testCases := []struct {
		name      string
		mediaType domain.MediaType
		stream    transcode.StreamDescriptor
		profile   *transcode.DeviceProfile
		want      transcode.Decision
	}{
		{
			name:      "audio never transcodes",
			mediaType: domain.MediaTypeAudio,
			stream:    transcode.StreamDescriptor{PlayMethod: optional.New(domain.PlayMethodTranscode)},
			want: transcode.Decision{
				Reason:            transcode.ReasonTypeNotTranscodable,
				ErrorMessage:      "Audio cannot be transcoded and must be played directly",
				FallbackAvailable: false,
			},
		},
		{
			name:      "photo never transcodes",
			mediaType: domain.MediaTypePhoto,
			want: transcode.Decision{
				Reason:       transcode.ReasonTypeNotTranscodable,
				ErrorMessage: "Photos cannot be transcoded and must be played directly",
			},
		},
		{
			name:      "book never transcodes",
			mediaType: domain.MediaTypeBook,
			want: transcode.Decision{
				Reason:       transcode.ReasonTypeNotTranscodable,
				ErrorMessage: "Books cannot be transcoded and must be played directly",
			},
		},
		{
			name:      "unknown never transcodes",
			mediaType: domain.MediaTypeUnknown,
			want: transcode.Decision{
				Reason:       transcode.ReasonTypeNotTranscodable,
				ErrorMessage: "This media type cannot be transcoded and must be played directly",
			},
		},
		{
			name:      "video direct play preferred",
			mediaType: domain.MediaTypeVideo,
			stream:    transcode.StreamDescriptor{PlayMethod: optional.New(domain.PlayMethodDirectPlay)},
			want:      transcode.Decision{Reason: transcode.ReasonDirectPreferred},
		},
		{
			name:      "video direct play unsupported",
			mediaType: domain.MediaTypeVideo,
			stream:    transcode.StreamDescriptor{SupportsDirectPlay: optional.New(false)},
			want: transcode.Decision{
				ShouldTranscode:   true,
				Reason:            transcode.ReasonDirectNotSupported,
				FallbackAvailable: true,
			},
		},
		{
			name:      "video already transcoding counts as direct play unsupported",
			mediaType: domain.MediaTypeVideo,
			stream:    transcode.StreamDescriptor{PlayMethod: optional.New(domain.PlayMethodTranscode)},
			want: transcode.Decision{
				ShouldTranscode:   true,
				Reason:            transcode.ReasonDirectNotSupported,
				FallbackAvailable: true,
			},
		},
		{
			name:      "video already transcoding still refused over policy cap",
			mediaType: domain.MediaTypeVideo,
			stream: transcode.StreamDescriptor{
				PlayMethod: optional.New(domain.PlayMethodTranscode),
				Bitrate:    optional.New[int64](150_000_000),
			},
			want: transcode.Decision{
				Reason:            transcode.ReasonBitrateExceeded,
				ErrorMessage:      "This item exceeds the maximum allowed bitrate and cannot be played",
				FallbackAvailable: false,
			},
		},
		{
			name:      "video over policy cap refused",
			mediaType: domain.MediaTypeVideo,
			stream:    transcode.StreamDescriptor{Bitrate: optional.New[int64](150_000_000)},
			want: transcode.Decision{
				Reason:            transcode.ReasonBitrateExceeded,
				ErrorMessage:      "This item exceeds the maximum allowed bitrate and cannot be played",
				FallbackAvailable: false,
			},
		},
		{
			name:      "video over policy cap refused even with generous device profile",
			mediaType: domain.MediaTypeVideo,
			stream:    transcode.StreamDescriptor{Bitrate: optional.New[int64](150_000_000)},
			profile:   &transcode.DeviceProfile{MaxStreamingBitrate: optional.New[int64](500_000_000)},
			want: transcode.Decision{
				Reason:            transcode.ReasonBitrateExceeded,
				ErrorMessage:      "This item exceeds the maximum allowed bitrate and cannot be played",
				FallbackAvailable: false,
			},
		},
		{
			name:      "video over device limit transcodes",
			mediaType: domain.MediaTypeVideo,
			stream:    transcode.StreamDescriptor{Bitrate: optional.New[int64](40_000_000)},
			profile:   &transcode.DeviceProfile{MaxStreamingBitrate: optional.New[int64](20_000_000)},
			want: transcode.Decision{
				ShouldTranscode:   true,
				Reason:            transcode.ReasonBitrateExceeded,
				FallbackAvailable: true,
			},
		},
		{
			name:      "video defaults to transcode allowed",
			mediaType: domain.MediaTypeVideo,
			want: transcode.Decision{
				ShouldTranscode:   true,
				Reason:            transcode.ReasonTranscodeAllowed,
				FallbackAvailable: true,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, transcode.Decide(tc.mediaType, tc.stream, tc.profile))
		})
	}
}

func TestHandlePlaybackFailure(t *testing.T) {
	item := domain.MediaItem{ID: "i1", Name: "some item"}

	t.Run("audio is terminal but retryable", func(t *testing.T) {
		outcome := transcode.HandlePlaybackFailure(errors.New("network reset"), domain.MediaTypeAudio, item)
		assert.True(t, outcome.CanRetry)
		assert.False(t, outcome.FallbackAvailable)
		assert.Equal(t, `Playback of "some item" failed: network reset`, outcome.ErrorMessage)
	})

	t.Run("video transcoder error has no fallback", func(t *testing.T) {
		outcome := transcode.HandlePlaybackFailure(errors.New("Transcode pipeline stalled"), domain.MediaTypeVideo, item)
		assert.False(t, outcome.CanRetry)
		assert.False(t, outcome.FallbackAvailable)
	})

	t.Run("video encoder error has no fallback", func(t *testing.T) {
		outcome := transcode.HandlePlaybackFailure(errors.New("failed to encode segment"), domain.MediaTypeVideo, item)
		assert.False(t, outcome.CanRetry)
		assert.False(t, outcome.FallbackAvailable)
	})

	t.Run("video direct-play error falls back to transcode", func(t *testing.T) {
		outcome := transcode.HandlePlaybackFailure(errors.New("unsupported codec"), domain.MediaTypeVideo, item)
		assert.True(t, outcome.CanRetry)
		assert.True(t, outcome.FallbackAvailable)
		assert.Equal(t, `Direct playback of "some item" failed: unsupported codec`, outcome.ErrorMessage)
	})
}
