package config

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/matrixci/internal/foundation/normalization"
)

// Channel selects how third-party dependencies are resolved for a matrix entry.
type Channel string

const (
	// ChannelBinary resolves dependencies through the binary scientific package manager.
	ChannelBinary Channel = "binary"
	// ChannelSource resolves dependencies through the source package installer.
	ChannelSource Channel = "source"
)

// DefaultChannelEnv is the variable consulted when an entry does not name a channel.
const DefaultChannelEnv = "DISTRIB"

var channelNormalizer = normalization.NewNormalizer(map[string]Channel{
	"binary": ChannelBinary,
	"conda":  ChannelBinary,
	"source": ChannelSource,
	"pip":    ChannelSource,
}, "")

// ParseChannel converts user input (case-insensitive, aliases conda/pip) into a Channel.
func ParseChannel(raw string) (Channel, error) {
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("provisioning channel is empty")
	}
	ch, err := channelNormalizer.NormalizeWithError(raw)
	if err != nil {
		return "", fmt.Errorf("unknown provisioning channel: %w", err)
	}
	return ch, nil
}

func (c Channel) String() string { return string(c) }

// PostAction names an optional action run after an entry's tests pass.
type PostAction string

const (
	PostActionNone           PostAction = ""
	PostActionCoverageUpload PostAction = "coverage_upload"
)

// TestRunner names the supported test discovery tools.
type TestRunner string

const (
	RunnerNose     TestRunner = "nose"
	RunnerPytest   TestRunner = "pytest"
	RunnerUnittest TestRunner = "unittest"
)

var runnerNormalizer = normalization.NewNormalizer(map[string]TestRunner{
	"nose":      RunnerNose,
	"nosetests": RunnerNose,
	"pytest":    RunnerPytest,
	"py.test":   RunnerPytest,
	"unittest":  RunnerUnittest,
}, "")

// NormalizeRunner maps runner spellings onto a TestRunner; unknown input is
// returned unchanged so validation can report it.
func NormalizeRunner(raw string) TestRunner {
	if r := runnerNormalizer.Normalize(raw); r != "" {
		return r
	}
	return TestRunner(raw)
}

// UploaderKind names the supported coverage sinks.
type UploaderKind string

const (
	UploaderHTTP    UploaderKind = "http"
	UploaderS3      UploaderKind = "s3"
	UploaderCommand UploaderKind = "command"
)
