package serve

import (
	"fmt"
	"strings"

	cmdUtil "github.com/ValentinKolb/dREST/cmd/util"
	"github.com/ValentinKolb/dREST/lib/document"
	"github.com/ValentinKolb/dREST/lib/store/memstore"
	"github.com/ValentinKolb/dREST/rest/common"
	"github.com/ValentinKolb/dREST/rest/server"
	"github.com/ValentinKolb/dREST/rest/transport/http"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = common.DefaultConfig()
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the dREST server",
		Long:    `Start the dREST server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is DREST_<flag> (e.g. DREST_ENDPOINT=:8080)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitEnvConfig)

	// add flags
	key := "types"
	ServeCmd.PersistentFlags().String(key, "types.json", cmdUtil.WrapString("Path to the schema file declaring the entity types to expose. Each type lists its properties (wire type tags like StringProperty) and the enabled operations"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, ":8080", cmdUtil.WrapString("The address on which the REST API will listen (e.g. localhost:8080)"))

	key = "base-path"
	ServeCmd.PersistentFlags().String(key, "/rest", cmdUtil.WrapString("URL prefix all REST paths live under"))

	key = "content-types"
	ServeCmd.PersistentFlags().String(key, "json,xml", cmdUtil.WrapString("Comma-separated list of supported content types in preference order; the last one is the default. Accepts the shorthands json and xml or full media types"))

	key = "simplified-json"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Collapse item wrappers in JSON list output so arrays of scalars render as plain JSON arrays"))

	key = "xml-namespace"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Optional xmlns attribute emitted on entity elements"))

	key = "accept-type-namespace"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Accept the namespace-qualified form (ns.typename) of registered type names in request paths and bodies. The bare name is always accepted"))

	key = "expose-type-namespace"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Serialize entities of namespace-qualified types under their full ns.typename element name instead of the bare name"))

	key = "default-page-size"
	ServeCmd.PersistentFlags().Int(key, 50, cmdUtil.WrapString("Number of entities a query returns when the request does not ask for a page size"))

	key = "etags"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Enable the ETag concurrency protocol (If-Match / If-None-Match)"))

	key = "cache"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Enable the in-memory response cache for GET requests"))

	key = "cache-ttl"
	ServeCmd.PersistentFlags().Int64(key, 30, cmdUtil.WrapString("Lifetime of a cached response in seconds"))

	key = "cache-max-entries"
	ServeCmd.PersistentFlags().Int(key, 1024, cmdUtil.WrapString("Maximum number of cached responses before the least recently used entry is evicted"))

	key = "bulk-delete"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Enable collection DELETE (bulk delete by filter). Disabled by default because it is destructive"))

	key = "auth-secret"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("HMAC secret for JWT bearer token authentication. Empty disables authentication"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	// parse content types
	contentTypes, err := parseContentTypes(viper.GetString("content-types"))
	if err != nil {
		return err
	}
	serveCmdConfig.ContentTypes = contentTypes

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.BasePath = viper.GetString("base-path")
	serveCmdConfig.SimplifiedJSON = viper.GetBool("simplified-json")
	serveCmdConfig.XMLNamespace = viper.GetString("xml-namespace")
	serveCmdConfig.AcceptTypeNamespace = viper.GetBool("accept-type-namespace")
	serveCmdConfig.ExposeTypeNamespace = viper.GetBool("expose-type-namespace")
	serveCmdConfig.DefaultPageSize = viper.GetInt("default-page-size")
	serveCmdConfig.ETagsEnabled = viper.GetBool("etags")
	serveCmdConfig.CacheEnabled = viper.GetBool("cache")
	serveCmdConfig.CacheTTLSeconds = viper.GetInt64("cache-ttl")
	serveCmdConfig.CacheMaxEntries = viper.GetInt("cache-max-entries")
	serveCmdConfig.BulkDeleteEnabled = viper.GetBool("bulk-delete")
	serveCmdConfig.AuthSecret = viper.GetString("auth-secret")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	if serveCmdConfig.DefaultPageSize <= 0 {
		return fmt.Errorf("default-page-size must be positive")
	}

	return nil
}

// parseContentTypes converts the comma-separated content type list into
// full media types
func parseContentTypes(value string) ([]string, error) {
	var contentTypes []string
	for _, entry := range strings.Split(value, ",") {
		switch entry = strings.TrimSpace(entry); entry {
		case "json":
			contentTypes = append(contentTypes, document.ContentTypeJSON)
		case "xml":
			contentTypes = append(contentTypes, document.ContentTypeXML)
		case "":
			continue
		default:
			if !strings.Contains(entry, "/") {
				return nil, fmt.Errorf("invalid content type %q (expected json, xml or a full media type)", entry)
			}
			contentTypes = append(contentTypes, entry)
		}
	}
	if len(contentTypes) == 0 {
		return nil, fmt.Errorf("no content types configured")
	}
	return contentTypes, nil
}

// run starts the dREST server
func run(_ *cobra.Command, _ []string) error {

	// load the entity types the server will expose
	registry, err := loadSchemaFile(viper.GetString("types"))
	if err != nil {
		return err
	}

	serv, err := server.NewRESTServer(
		serveCmdConfig,
		http.NewHTTPServerTransport(),
		registry,
		memstore.NewMemoryStore(),
		server.Options{},
	)
	if err != nil {
		return err
	}

	return serv.Serve()
}
