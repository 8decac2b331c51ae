package settings

import (
	"net/http"
	"time"

	"github.com/huandu/go-clone"
	"gopkg.in/yaml.v3"
)

// DefaultTimeoutSeconds bounds a whole request, streamed generation included.
const DefaultTimeoutSeconds = 60

type ClientSettings struct {
	Timeout        *time.Duration `yaml:"timeout,omitempty"`
	TimeoutSeconds *int           `yaml:"timeout_second,omitempty" mapstructure:"timeout"`
	Organization   *string        `yaml:"organization,omitempty" mapstructure:"organization"`
	UserAgent      *string        `yaml:"user_agent,omitempty" mapstructure:"user-agent"`
	HTTPClient     *http.Client   `yaml:"-" json:"-"`
}

// UnmarshalYAML overrides YAML parsing to convert the timeout from int seconds
func (cs *ClientSettings) UnmarshalYAML(value *yaml.Node) error {
	aux := struct {
		Timeout        *int    `yaml:"timeout,omitempty"`
		TimeoutSeconds *int    `yaml:"timeout_second,omitempty"`
		Organization   *string `yaml:"organization,omitempty"`
		UserAgent      *string `yaml:"user_agent,omitempty"`
	}{}
	if err := value.Decode(&aux); err != nil {
		return err
	}
	if aux.TimeoutSeconds != nil {
		cs.SetTimeoutSeconds(*aux.TimeoutSeconds)
	}
	if aux.Timeout != nil {
		cs.SetTimeoutSeconds(*aux.Timeout)
	}
	if aux.Organization != nil {
		cs.Organization = aux.Organization
	}
	if aux.UserAgent != nil {
		cs.UserAgent = aux.UserAgent
	}
	return nil
}

func (cs *ClientSettings) SetTimeoutSeconds(seconds int) {
	t := time.Duration(seconds) * time.Second
	cs.Timeout = &t
	cs.TimeoutSeconds = &seconds
}

func (cs *ClientSettings) Clone() *ClientSettings {
	// the http client carries live connections and is shared, not copied
	httpClient := cs.HTTPClient
	cs.HTTPClient = nil
	ret := clone.Clone(cs).(*ClientSettings)
	cs.HTTPClient = httpClient
	ret.HTTPClient = httpClient
	return ret
}

// NewHTTPClient returns the configured HTTPClient or builds one with the
// configured timeout around transport.
func (cs *ClientSettings) NewHTTPClient(transport http.RoundTripper) *http.Client {
	if cs.HTTPClient != nil {
		ret := *cs.HTTPClient
		if transport != nil {
			ret.Transport = transport
		}
		return &ret
	}
	ret := &http.Client{Transport: transport}
	if cs.Timeout != nil {
		ret.Timeout = *cs.Timeout
	}
	return ret
}

func NewClientSettings() *ClientSettings {
	ret := &ClientSettings{}
	ret.SetTimeoutSeconds(DefaultTimeoutSeconds)
	return ret
}
