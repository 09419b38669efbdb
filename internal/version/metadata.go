// Package version downloads and parses per-version descriptors.
package version

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/steviee/bread-launcher/internal/apperr"
	"github.com/steviee/bread-launcher/internal/rules"
)

const (
	// DefaultJavaComponent is used by descriptors that predate javaVersion.
	DefaultJavaComponent = "jre-legacy"

	// DefaultJavaMajor is the runtime major for those descriptors.
	DefaultJavaMajor = 8
)

// Schema identifies which argument layout a descriptor uses.
type Schema int

const (
	// SchemaModern descriptors carry a structured "arguments" object.
	SchemaModern Schema = iota
	// SchemaLegacy descriptors carry a flat "minecraftArguments" string.
	SchemaLegacy
)

func (s Schema) String() string {
	if s == SchemaLegacy {
		return "legacy"
	}
	return "modern"
}

// Metadata is a parsed version descriptor. It is not mutated after parsing
// except by a loader merge that runs before it is shared.
type Metadata struct {
	ID                     string        `json:"id"`
	Type                   string        `json:"type"`
	MainClass              string        `json:"mainClass"`
	MinimumLauncherVersion int           `json:"minimumLauncherVersion"`
	ComplianceLevel        int           `json:"complianceLevel"`
	Assets                 string        `json:"assets"`
	AssetIndex             AssetIndexRef `json:"assetIndex"`
	Downloads              Downloads     `json:"downloads"`
	JavaVersion            JavaVersion   `json:"javaVersion"`
	Libraries              []Library     `json:"libraries"`
	MinecraftArguments     string        `json:"minecraftArguments,omitempty"`
	Arguments              *Arguments    `json:"arguments,omitempty"`
	InheritsFrom           string        `json:"inheritsFrom,omitempty"`
	Time                   string        `json:"time"`
	ReleaseTime            string        `json:"releaseTime"`

	// Dir is the instance directory this metadata was parsed for.
	Dir string `json:"-"`
}

// Schema reports the argument layout. A structured arguments object wins
// when a descriptor carries both.
func (m *Metadata) Schema() Schema {
	if m.Arguments != nil {
		return SchemaModern
	}
	return SchemaLegacy
}

// Java returns the runtime requirement, defaulting to Java 8.
func (m *Metadata) Java() JavaVersion {
	jv := m.JavaVersion
	if jv.MajorVersion == 0 {
		jv.MajorVersion = DefaultJavaMajor
	}
	if jv.Component == "" {
		jv.Component = DefaultJavaComponent
	}
	return jv
}

// Validate checks the fields the launch pipeline cannot do without.
func (m *Metadata) Validate() error {
	switch {
	case m.ID == "":
		return apperr.Errorf(apperr.Config, "version.validate", "descriptor has no id")
	case m.MainClass == "":
		return apperr.Errorf(apperr.Config, "version.validate", "descriptor %s has no mainClass", m.ID)
	case m.Arguments == nil && m.MinecraftArguments == "":
		return apperr.Errorf(apperr.Config, "version.validate", "descriptor %s has neither arguments nor minecraftArguments", m.ID)
	}
	return nil
}

// AssetIndexRef points at an asset index document.
type AssetIndexRef struct {
	ID        string `json:"id"`
	SHA1      string `json:"sha1"`
	Size      int64  `json:"size"`
	TotalSize int64  `json:"totalSize"`
	URL       string `json:"url"`
}

// Download is a single downloadable file.
type Download struct {
	SHA1 string `json:"sha1"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// Downloads holds the client and server jar pointers.
type Downloads struct {
	Client *Download `json:"client,omitempty"`
	Server *Download `json:"server,omitempty"`
}

// JavaVersion is the runtime requirement of a version.
type JavaVersion struct {
	Component    string `json:"component"`
	MajorVersion int    `json:"majorVersion"`
}

// Library is one entry of the libraries list.
type Library struct {
	Name      string           `json:"name"`
	Downloads LibraryDownloads `json:"downloads"`
	Rules     []rules.Rule     `json:"rules,omitempty"`

	// URL is a Maven repository base used by loader profiles that list
	// coordinates without download pointers.
	URL  string `json:"url,omitempty"`
	SHA1 string `json:"sha1,omitempty"`
	Size int64  `json:"size,omitempty"`
}

// LibraryDownloads holds the main artifact and platform classifiers.
type LibraryDownloads struct {
	Artifact    *Artifact            `json:"artifact,omitempty"`
	Classifiers map[string]*Artifact `json:"classifiers,omitempty"`
}

// Artifact is a library file addressed by a slash-separated path.
type Artifact struct {
	Path string `json:"path"`
	SHA1 string `json:"sha1"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// Arguments is the structured argument object.
type Arguments struct {
	Game []Argument `json:"game"`
	JVM  []Argument `json:"jvm"`
}

// Argument is either a plain string or a rule-guarded list of values.
type Argument struct {
	Rules  []rules.Rule
	Values []string
}

// Plain reports whether the argument carries no rules.
func (a Argument) Plain() bool {
	return len(a.Rules) == 0
}

// UnmarshalJSON accepts "value", {"rules": [...], "value": "v"} and
// {"rules": [...], "value": ["a", "b"]}.
func (a *Argument) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Argument{Values: []string{s}}
		return nil
	}

	var raw struct {
		Rules []rules.Rule    `json:"rules"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("argument: %w", err)
	}

	values, err := stringOrList(raw.Value)
	if err != nil {
		return fmt.Errorf("argument value: %w", err)
	}
	*a = Argument{Rules: raw.Rules, Values: values}
	return nil
}

// MarshalJSON writes the short string form when possible.
func (a Argument) MarshalJSON() ([]byte, error) {
	if a.Plain() && len(a.Values) == 1 {
		return json.Marshal(a.Values[0])
	}
	return json.Marshal(struct {
		Rules []rules.Rule `json:"rules,omitempty"`
		Value []string     `json:"value"`
	}{a.Rules, a.Values})
}

func stringOrList(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return []string{s}, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Decode parses a descriptor without validating it.
func Decode(data []byte) (*Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, apperr.New(apperr.Config, "version.decode", fmt.Errorf("decode descriptor: %w", err))
	}
	return &m, nil
}
