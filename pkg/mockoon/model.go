// Package mockoon builds Mockoon environments from OpenAPI documents and
// manages their lifecycle through a Runner.
//
// The Environment types follow the Mockoon environment file format, so an
// exported environment opens in Mockoon and runs under mockoon-cli.
package mockoon

// LastMigration is the Mockoon data migration level written to new
// environments.
const LastMigration = 32

// Route types.
const (
	RouteTypeHTTP = "http"
)

// Rule targets.
const (
	TargetBody          = "body"
	TargetQuery         = "query"
	TargetHeader        = "header"
	TargetCookie        = "cookie"
	TargetParams        = "params"
	TargetRequestNumber = "request_number"
)

// Rule operators.
const (
	OperatorEquals        = "equals"
	OperatorRegex         = "regex"
	OperatorNull          = "null"
	OperatorEmptyArray    = "empty_array"
	OperatorArrayIncludes = "array_includes"
)

// Rules operators.
const (
	RulesOR  = "OR"
	RulesAND = "AND"
)

// Environment is a Mockoon environment.
type Environment struct {
	UUID              string       `json:"uuid"`
	LastMigration     int          `json:"lastMigration"`
	Name              string       `json:"name"`
	EndpointPrefix    string       `json:"endpointPrefix"`
	Latency           int          `json:"latency"`
	Port              int          `json:"port"`
	Hostname          string       `json:"hostname"`
	Folders           []any        `json:"folders"`
	Routes            []Route      `json:"routes"`
	RootChildren      []RootChild  `json:"rootChildren"`
	ProxyMode         bool         `json:"proxyMode"`
	ProxyHost         string       `json:"proxyHost"`
	ProxyRemovePrefix bool         `json:"proxyRemovePrefix"`
	TLSOptions        TLSOptions   `json:"tlsOptions"`
	Cors              bool         `json:"cors"`
	Headers           []Header     `json:"headers"`
	ProxyReqHeaders   []Header     `json:"proxyReqHeaders"`
	ProxyResHeaders   []Header     `json:"proxyResHeaders"`
	Data              []DataBucket `json:"data"`
	Callbacks         []any        `json:"callbacks"`
}

// Route is one endpoint of an environment.
type Route struct {
	UUID          string `json:"uuid"`
	Type          string `json:"type"`
	Documentation string `json:"documentation"`
	Method        string `json:"method"`
	// Endpoint has no leading slash and uses :param placeholders.
	Endpoint          string     `json:"endpoint"`
	Responses         []Response `json:"responses"`
	ResponseMode      *string    `json:"responseMode"`
	StreamingMode     *string    `json:"streamingMode"`
	StreamingInterval int        `json:"streamingInterval"`
}

// Response is one candidate response of a route.
type Response struct {
	UUID              string   `json:"uuid"`
	Body              string   `json:"body"`
	Latency           int      `json:"latency"`
	StatusCode        int      `json:"statusCode"`
	Label             string   `json:"label"`
	Headers           []Header `json:"headers"`
	BodyType          string   `json:"bodyType"`
	FilePath          string   `json:"filePath"`
	DatabucketID      string   `json:"databucketID"`
	SendFileAsBody    bool     `json:"sendFileAsBody"`
	Rules             []Rule   `json:"rules"`
	RulesOperator     string   `json:"rulesOperator"`
	DisableTemplating bool     `json:"disableTemplating"`
	FallbackTo404     bool     `json:"fallbackTo404"`
	Default           bool     `json:"default"`
	CrudKey           string   `json:"crudKey"`
	Callbacks         []any    `json:"callbacks"`
}

// Header is a response or environment header.
type Header struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Rule selects a response from request data.
type Rule struct {
	Target string `json:"target"`
	// Modifier names the query parameter, header, cookie or route param, or
	// holds a JSONPath (or dotted path) into the body.
	Modifier string `json:"modifier"`
	Value    string `json:"value"`
	Invert   bool   `json:"invert"`
	Operator string `json:"operator"`
}

// RootChild orders routes in the Mockoon UI.
type RootChild struct {
	Type string `json:"type"`
	UUID string `json:"uuid"`
}

// TLSOptions is the environment TLS configuration. Generated environments
// never enable it.
type TLSOptions struct {
	Enabled    bool   `json:"enabled"`
	Type       string `json:"type"`
	PfxPath    string `json:"pfxPath"`
	CertPath   string `json:"certPath"`
	KeyPath    string `json:"keyPath"`
	CaPath     string `json:"caPath"`
	Passphrase string `json:"passphrase"`
}

// DataBucket is a named JSON value shared by responses.
type DataBucket struct {
	UUID          string `json:"uuid"`
	ID            string `json:"id"`
	Name          string `json:"name"`
	Documentation string `json:"documentation"`
	Value         string `json:"value"`
}

// DefaultResponse returns the response marked default, or the first one.
func (r *Route) DefaultResponse() *Response {
	for i := range r.Responses {
		if r.Responses[i].Default {
			return &r.Responses[i]
		}
	}
	if len(r.Responses) > 0 {
		return &r.Responses[0]
	}
	return nil
}

// Clone returns a deep copy via the routes, headers and rules slices.
func (e *Environment) Clone() *Environment {
	c := *e
	c.Routes = make([]Route, len(e.Routes))
	for i, r := range e.Routes {
		r.Responses = append([]Response(nil), r.Responses...)
		for j := range r.Responses {
			r.Responses[j].Headers = append([]Header(nil), r.Responses[j].Headers...)
			r.Responses[j].Rules = append([]Rule(nil), r.Responses[j].Rules...)
		}
		c.Routes[i] = r
	}
	c.RootChildren = append([]RootChild(nil), e.RootChildren...)
	c.Headers = append([]Header(nil), e.Headers...)
	c.Data = append([]DataBucket(nil), e.Data...)
	return &c
}

// normalize fills the slices Mockoon expects to be present as [] rather than
// null.
func (e *Environment) normalize() {
	if e.LastMigration == 0 {
		e.LastMigration = LastMigration
	}
	if e.Folders == nil {
		e.Folders = []any{}
	}
	if e.Routes == nil {
		e.Routes = []Route{}
	}
	if e.RootChildren == nil {
		e.RootChildren = []RootChild{}
	}
	if e.Headers == nil {
		e.Headers = []Header{}
	}
	if e.ProxyReqHeaders == nil {
		e.ProxyReqHeaders = []Header{}
	}
	if e.ProxyResHeaders == nil {
		e.ProxyResHeaders = []Header{}
	}
	if e.Data == nil {
		e.Data = []DataBucket{}
	}
	if e.Callbacks == nil {
		e.Callbacks = []any{}
	}
	for i := range e.Routes {
		r := &e.Routes[i]
		if r.Type == "" {
			r.Type = RouteTypeHTTP
		}
		for j := range r.Responses {
			resp := &r.Responses[j]
			if resp.Headers == nil {
				resp.Headers = []Header{}
			}
			if resp.Rules == nil {
				resp.Rules = []Rule{}
			}
			if resp.Callbacks == nil {
				resp.Callbacks = []any{}
			}
			if resp.BodyType == "" {
				resp.BodyType = "INLINE"
			}
			if resp.RulesOperator == "" {
				resp.RulesOperator = RulesOR
			}
		}
	}
}
