package payjoin

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Version is the Payjoin protocol version a sender declared.
type Version int

const (
	VersionOne Version = 1
	VersionTwo Version = 2
)

// SupportedVersions is the set of versions process_res is willing to parse. A sender declaring
// anything else fails with version-unsupported.
var SupportedVersions = map[Version]bool{VersionOne: true, VersionTwo: true}

// OutputSubstitution is the sender's declared (or downgraded) permission for the receiver to
// change the sender-supplied receiver output(s).
type OutputSubstitution int

const (
	OutputSubstitutionEnabled OutputSubstitution = iota
	OutputSubstitutionDisabled
)

// Params is parsed from the query string carried alongside the base64 PSBT in the sender's
// payload, never from the HTTP request's own query string.
type Params struct {
	Version            Version
	OutputSubstitution OutputSubstitution
	MinFeeRateSatPerVByte *float64
	PjURL              string
}

// ParseParams parses the query portion of a sender payload. Unknown parameters are ignored
// unless their name is prefixed with '+', in which case an unrecognized one fails with an
// "unknown required parameter" error (BIP-78's "required" parameter marker).
func ParseParams(query string) (Params, error) {
	params := Params{
		Version:            VersionOne,
		OutputSubstitution: OutputSubstitutionEnabled,
	}

	if len(query) == 0 {
		return params, nil
	}

	values, err := url.ParseQuery(query)
	if err != nil {
		return Params{}, errors.Wrap(err, "parse query")
	}

	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		value := vals[0]

		required := strings.HasPrefix(key, "+")
		name := strings.TrimPrefix(key, "+")

		switch name {
		case "v":
			v, err := strconv.Atoi(value)
			if err != nil {
				return Params{}, errors.Wrap(err, "parse v")
			}
			params.Version = Version(v)

		case "output_substitution":
			switch value {
			case "enabled":
				params.OutputSubstitution = OutputSubstitutionEnabled
			case "disabled":
				params.OutputSubstitution = OutputSubstitutionDisabled
			default:
				return Params{}, errors.Errorf("invalid output_substitution value %q", value)
			}

		case "minfeerate":
			rate, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return Params{}, errors.Wrap(err, "parse minfeerate")
			}
			params.MinFeeRateSatPerVByte = &rate

		case "pj":
			params.PjURL = value

		default:
			if required {
				return Params{}, errors.Errorf("unknown required parameter %q", name)
			}
		}
	}

	if !SupportedVersions[params.Version] {
		return Params{}, &UnsupportedVersionError{Version: params.Version}
	}

	return params, nil
}

// UnsupportedVersionError is returned by ParseParams when a payload declares a protocol version
// outside SupportedVersions, distinctly from the core's other (original-psbt-invalid) parse
// failures so callers can map it to the version-unsupported JSON code.
type UnsupportedVersionError struct {
	Version Version
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported version %d", e.Version)
}

// IsUnsupportedVersion reports whether err is an *UnsupportedVersionError.
func IsUnsupportedVersion(err error) bool {
	_, ok := err.(*UnsupportedVersionError)
	return ok
}
