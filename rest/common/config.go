package common

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ValentinKolb/dREST/lib/document"
)

// --------------------------------------------------------------------------
// REST server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters for the REST server.
type ServerConfig struct {
	// HTTP settings
	Endpoint string // listen address, e.g. ":8080"
	BasePath string // URL prefix all REST paths live under, e.g. "/rest"

	// Serialization settings
	ContentTypes   []string // supported content types in preference order; the last one is the default
	SimplifiedJSON bool     // collapse item wrappers in JSON list output
	XMLNamespace   string   // optional xmlns attribute emitted on entity elements

	// Type namespaces (types registered under ns.typename names)
	AcceptTypeNamespace bool // accept the namespace-qualified form in request paths and bodies
	ExposeTypeNamespace bool // serialize entity elements under the namespace-qualified name

	// Query settings
	DefaultPageSize int

	// Concurrency control
	ETagsEnabled bool

	// Response caching
	CacheEnabled    bool
	CacheTTLSeconds int64
	CacheMaxEntries int

	// Destructive operations
	BulkDeleteEnabled bool

	// Authentication (empty secret disables token checks)
	AuthSecret string

	// Logging configuration
	LogLevel string
}

// DefaultConfig returns a ServerConfig with sensible defaults for a
// single-node deployment.
func DefaultConfig() ServerConfig {
	return ServerConfig{
		Endpoint:            ":8080",
		BasePath:            "/rest",
		ContentTypes:        []string{document.ContentTypeJSON, document.ContentTypeXML},
		AcceptTypeNamespace: true,
		ExposeTypeNamespace: true,
		DefaultPageSize:     50,
		ETagsEnabled:        true,
		CacheEnabled:        false,
		CacheTTLSeconds:     30,
		CacheMaxEntries:     1024,
		LogLevel:            "info",
	}
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// REST settings
	addSection("REST Server")
	addField("Endpoint", c.Endpoint)
	addField("Base Path", c.BasePath)
	addField("Default Page Size", strconv.Itoa(c.DefaultPageSize))
	addField("Bulk Delete", fmt.Sprintf("%t", c.BulkDeleteEnabled))

	// Serialization
	addSection("Serialization")
	for i, ct := range c.ContentTypes {
		addField(fmt.Sprintf("Content Type %d", i), ct)
	}
	addField("Simplified JSON", fmt.Sprintf("%t", c.SimplifiedJSON))
	if c.XMLNamespace != "" {
		addField("XML Namespace", c.XMLNamespace)
	}
	addField("Type Namespaces", fmt.Sprintf("accept=%t expose=%t", c.AcceptTypeNamespace, c.ExposeTypeNamespace))

	// Concurrency and caching
	addSection("Concurrency & Caching")
	addField("ETags", fmt.Sprintf("%t", c.ETagsEnabled))
	addField("Response Cache", fmt.Sprintf("%t", c.CacheEnabled))
	if c.CacheEnabled {
		addField("Cache TTL", fmt.Sprintf("%d sec", c.CacheTTLSeconds))
		addField("Cache Max Entries", strconv.Itoa(c.CacheMaxEntries))
	}

	// Authentication
	addSection("Authentication")
	if c.AuthSecret != "" {
		addField("Mode", "JWT bearer tokens")
	} else {
		addField("Mode", "disabled")
	}

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
