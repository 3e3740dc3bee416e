// Package transcode decides whether a stream must be transcoded or can be
// played directly. The policy table is fixed: only video may ever be
// transcoded, and only below a hard bitrate ceiling.
package transcode

import (
	"fmt"
	"strings"

	"github.com/playhead/playhead/internal/domain"
	"github.com/playhead/playhead/internal/optional"
)

// maxStreamingBitrate is the policy-level ceiling above which playback is
// refused outright. A device profile may impose a lower, negotiable limit.
const maxStreamingBitrate = 100_000_000

// Reason identifies why a decision came out the way it did.
type Reason string

const (
	ReasonDirectPreferred     Reason = "DIRECT_PREFERRED"
	ReasonDirectNotSupported  Reason = "DIRECT_NOT_SUPPORTED"
	ReasonBitrateExceeded     Reason = "BITRATE_EXCEEDED"
	ReasonTypeNotTranscodable Reason = "TYPE_NOT_TRANSCODABLE"
	ReasonTranscodeAllowed    Reason = "TRANSCODE_ALLOWED"
)

// StreamDescriptor describes the candidate stream under decision. It is
// read-only input: Decide never mutates it.
type StreamDescriptor struct {
	PlayMethod          optional.V[domain.PlayMethod]
	Bitrate             optional.V[int64]
	SupportsDirectPlay  optional.V[bool]
	SupportedVideoTypes []string
	SupportedAudioTypes []string
}

// DeviceProfile carries the device-level streaming limit. Unlike the
// policy ceiling, exceeding it merely forces a transcode.
type DeviceProfile struct {
	MaxStreamingBitrate optional.V[int64]
}

// Decision is the structured outcome of a policy check. Refusals carry an
// ErrorMessage suitable for surfacing verbatim.
type Decision struct {
	ShouldTranscode   bool
	Reason            Reason
	ErrorMessage      string
	FallbackAvailable bool
}

// Decide applies the fixed policy table to a media type, stream descriptor
// and optional device profile. It is a pure function.
func Decide(mediaType domain.MediaType, stream StreamDescriptor, profile *DeviceProfile) Decision {
	if mediaType != domain.MediaTypeVideo {
		return Decision{
			ShouldTranscode:   false,
			Reason:            ReasonTypeNotTranscodable,
			ErrorMessage:      fmt.Sprintf("%s cannot be transcoded and must be played directly", describeType(mediaType)),
			FallbackAvailable: false,
		}
	}

	if stream.PlayMethod.IsPresent() && stream.PlayMethod.Value == domain.PlayMethodDirectPlay {
		return Decision{ShouldTranscode: false, Reason: ReasonDirectPreferred}
	}

	if stream.SupportsDirectPlay.IsPresent() && !stream.SupportsDirectPlay.Value {
		return Decision{ShouldTranscode: true, Reason: ReasonDirectNotSupported, FallbackAvailable: true}
	}

	if stream.Bitrate.IsPresent() && stream.Bitrate.Value > maxStreamingBitrate {
		return Decision{
			ShouldTranscode:   false,
			Reason:            ReasonBitrateExceeded,
			ErrorMessage:      "This item exceeds the maximum allowed bitrate and cannot be played",
			FallbackAvailable: false,
		}
	}

	// An explicit non-direct play method means direct play is already off
	// the table. Checked after the policy cap so that an over-cap stream is
	// still refused outright.
	if stream.PlayMethod.IsPresent() && stream.PlayMethod.Value != domain.PlayMethodDirectPlay {
		return Decision{ShouldTranscode: true, Reason: ReasonDirectNotSupported, FallbackAvailable: true}
	}

	if profile != nil && profile.MaxStreamingBitrate.IsPresent() &&
		stream.Bitrate.IsPresent() && stream.Bitrate.Value > profile.MaxStreamingBitrate.Value {
		return Decision{ShouldTranscode: true, Reason: ReasonBitrateExceeded, FallbackAvailable: true}
	}

	return Decision{ShouldTranscode: true, Reason: ReasonTranscodeAllowed, FallbackAvailable: true}
}

// FailureOutcome classifies a playback failure for retry handling.
type FailureOutcome struct {
	CanRetry          bool
	FallbackAvailable bool
	ErrorMessage      string
}

// HandlePlaybackFailure classifies a playback error. Audio failures are
// terminal: retrying means trying the same stream again, never falling
// back to a transcode. Video failures fall back to a forced transcode
// unless the error already came from the transcoder.
func HandlePlaybackFailure(err error, mediaType domain.MediaType, item domain.MediaItem) FailureOutcome {
	message := ""
	if err != nil {
		message = err.Error()
	}

	if mediaType != domain.MediaTypeVideo {
		return FailureOutcome{
			CanRetry:          true,
			FallbackAvailable: false,
			ErrorMessage:      fmt.Sprintf("Playback of %q failed: %s", item.Name, message),
		}
	}

	lower := strings.ToLower(message)
	if strings.Contains(lower, "transcode") || strings.Contains(lower, "encode") {
		return FailureOutcome{
			CanRetry:          false,
			FallbackAvailable: false,
			ErrorMessage:      fmt.Sprintf("Transcoding of %q failed: %s", item.Name, message),
		}
	}

	return FailureOutcome{
		CanRetry:          true,
		FallbackAvailable: true,
		ErrorMessage:      fmt.Sprintf("Direct playback of %q failed: %s", item.Name, message),
	}
}

func describeType(mediaType domain.MediaType) string {
	switch mediaType {
	case domain.MediaTypeAudio:
		return "Audio"
	case domain.MediaTypePhoto:
		return "Photos"
	case domain.MediaTypeBook:
		return "Books"
	default:
		return "This media type"
	}
}
