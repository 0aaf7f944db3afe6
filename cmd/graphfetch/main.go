package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/graphfetch/graphfetch/internal/cache"
	"github.com/graphfetch/graphfetch/internal/client"
	"github.com/graphfetch/graphfetch/internal/config"
	"github.com/graphfetch/graphfetch/internal/eventbus"
	"github.com/graphfetch/graphfetch/internal/operation"
	"github.com/graphfetch/graphfetch/internal/otel"
	"github.com/graphfetch/graphfetch/internal/result"
)

const rootUsage = `graphfetch — GraphQL HTTP client & query runner

USAGE:
  graphfetch <command> [flags]

COMMANDS:
  query            Execute one or more query documents against an endpoint
  mutate           Execute a mutation document against an endpoint
  help             Show help for any command
`

const queryUsage = `query FLAGS:
  -config <file>              TOML config file (url, headers, cache, otel)
  -endpoint.url <url>         GraphQL endpoint URL (overrides config)
  -endpoint.header <h: v>     Extra request header. Repeatable
  -endpoint.timeout <dur>     HTTP timeout, e.g. 10s (default: 30s)
  -query <string>             Inline query document
  -file <path>                Query document file. Repeatable; files run
                              concurrently against the same client
  -variables <json>           Variables as a JSON object (default: {})
  -cache.policy <policy>      cache-first | cache-and-network | network-only
                              (default: cache-first)
  -cache.max-entries <n>      Bound the result cache (default: unbounded)
  -cache.ttl <dur>            Expire cached results, e.g. 5m (default: none)
  -pretty                     Pretty-print JSON output
  -otel.endpoint <addr>       OTLP collector endpoint
  -otel.service <name>        OpenTelemetry service name (default: graphfetch)
`

const mutateUsage = `mutate FLAGS:
  -config <file>              TOML config file (url, headers, otel)
  -endpoint.url <url>         GraphQL endpoint URL (overrides config)
  -endpoint.header <h: v>     Extra request header. Repeatable
  -endpoint.timeout <dur>     HTTP timeout, e.g. 10s (default: 30s)
  -query <string>             Inline mutation document
  -file <path>                Mutation document file
  -variables <json>           Variables as a JSON object (default: {})
  -pretty                     Pretty-print JSON output
  -otel.endpoint <addr>       OTLP collector endpoint
  -otel.service <name>        OpenTelemetry service name (default: graphfetch)
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := args[0]
	cmdArgs := args[1:]
	switch cmd {
	case "query":
		return cmdQuery(cmdArgs)
	case "mutate":
		return cmdMutate(cmdArgs)
	case "help":
		return cmdHelp(cmdArgs)
	default:
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string) error {
	if len(args) == 0 {
		fmt.Print(rootUsage)
		return nil
	}
	switch args[0] {
	case "query":
		fmt.Print(queryUsage)
	case "mutate":
		fmt.Print(mutateUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

type headerFlag struct {
	h http.Header
}

func (f *headerFlag) String() string { return "" }

func (f *headerFlag) Set(v string) error {
	name, value, ok := strings.Cut(v, ":")
	if !ok {
		return fmt.Errorf("invalid header %q, want 'Name: value'", v)
	}
	name = strings.TrimSpace(name)
	value = strings.TrimSpace(value)
	if name == "" {
		return fmt.Errorf("invalid header %q", v)
	}
	if f.h == nil {
		f.h = http.Header{}
	}
	f.h.Add(name, value)
	return nil
}

type stringListFlag []string

func (s *stringListFlag) String() string { return "" }

func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

const defaultTimeout = 30 * time.Second

// endpointFlags are the flags shared by query and mutate.
type endpointFlags struct {
	configPath string
	url        string
	headers    headerFlag
	timeout    time.Duration
	queryText  string
	files      stringListFlag
	variables  string
	pretty     bool
	otelAddr   string
	otelSvc    string
}

func (ef *endpointFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&ef.configPath, "config", "", "TOML config file")
	fs.StringVar(&ef.url, "endpoint.url", "", "GraphQL endpoint URL")
	fs.Var(&ef.headers, "endpoint.header", "Extra request header")
	fs.DurationVar(&ef.timeout, "endpoint.timeout", defaultTimeout, "HTTP timeout")
	fs.StringVar(&ef.queryText, "query", "", "Inline query document")
	fs.Var(&ef.files, "file", "Query document file")
	fs.StringVar(&ef.variables, "variables", "", "Variables as a JSON object")
	fs.BoolVar(&ef.pretty, "pretty", false, "Pretty-print JSON output")
	fs.StringVar(&ef.otelAddr, "otel.endpoint", "", "OTLP collector endpoint")
	fs.StringVar(&ef.otelSvc, "otel.service", "graphfetch", "OpenTelemetry service name")
}

// resolve merges the config file (when given) under the flag values and
// returns the client options derived from both.
func (ef *endpointFlags) resolve() (url string, copts []client.Option, plan config.Plan, err error) {
	if ef.configPath != "" {
		res, lerr := config.Load(ef.configPath, config.LoadOptions{})
		if lerr != nil {
			return "", nil, plan, lerr
		}
		for _, w := range res.Warnings {
			log.Print(w)
		}
		plan = res.Plan
	}

	url = ef.url
	if url == "" {
		url = plan.URL
	}
	if url == "" {
		return "", nil, plan, fmt.Errorf("no endpoint URL: set -endpoint.url or provide -config")
	}

	headers := http.Header{}
	for k, v := range plan.Headers {
		headers.Set(k, v)
	}
	for k, vs := range ef.headers.h {
		headers[k] = vs
	}
	if len(headers) > 0 {
		copts = append(copts, client.WithFetchOptions(operation.FetchOptions{Headers: headers}))
	}

	if ef.timeout == defaultTimeout && plan.Timeout > 0 {
		ef.timeout = plan.Timeout
	}
	if ef.otelAddr == "" {
		ef.otelAddr = plan.OTELEndpoint
	}
	if ef.otelSvc == "graphfetch" && plan.OTELService != "" {
		ef.otelSvc = plan.OTELService
	}
	return url, copts, plan, nil
}

func (ef *endpointFlags) parseVariables() (map[string]any, error) {
	if ef.variables == "" {
		return nil, nil
	}
	vars := map[string]any{}
	if err := json.Unmarshal([]byte(ef.variables), &vars); err != nil {
		return nil, fmt.Errorf("invalid -variables JSON: %w", err)
	}
	return vars, nil
}

func cmdQuery(args []string) error {
	var ef endpointFlags
	var policyName string
	var cacheMax int
	var cacheTTL time.Duration

	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	ef.register(fs)
	fs.StringVar(&policyName, "cache.policy", "", "Cache policy")
	fs.IntVar(&cacheMax, "cache.max-entries", 0, "Bound the result cache")
	fs.DurationVar(&cacheTTL, "cache.ttl", 0, "Expire cached results")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, queryUsage)
		return err
	}

	url, copts, plan, err := ef.resolve()
	if err != nil {
		return err
	}
	if policyName == "" {
		policyName = plan.CachePolicy
	}
	if policyName != "" {
		policy := client.CachePolicy(policyName)
		if !policy.Valid() {
			return fmt.Errorf("unknown cache policy %q", policyName)
		}
		copts = append(copts, client.WithCachePolicy(policy))
	}
	if cacheMax == 0 {
		cacheMax = plan.CacheMax
	}
	if cacheTTL == 0 {
		cacheTTL = plan.CacheTTL
	}
	if cacheMax > 0 || cacheTTL > 0 {
		copts = append(copts, client.WithCache(cache.New(
			cache.WithMaxEntries(cacheMax),
			cache.WithTTL(cacheTTL),
		)))
	}

	documents, err := collectDocuments(&ef)
	if err != nil {
		return err
	}
	vars, err := ef.parseVariables()
	if err != nil {
		return err
	}

	eventbus.Use(eventbus.New())
	shutdown, err := otel.Setup(ef.otelAddr, ef.otelSvc)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	c, err := client.New(url, &http.Client{Timeout: ef.timeout}, copts...)
	if err != nil {
		return err
	}

	var mu sync.Mutex
	failed := false
	g, ctx := errgroup.WithContext(context.Background())
	for _, name := range sortedNames(documents) {
		doc := documents[name]
		g.Go(func() error {
			res, err := c.ExecuteQuery(ctx, operation.Operation{Query: doc, Variables: vars})
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			mu.Lock()
			defer mu.Unlock()
			if len(documents) > 1 {
				fmt.Printf("# %s\n", name)
			}
			printResult(res, ef.pretty)
			if res.Error != nil {
				failed = true
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if failed {
		return fmt.Errorf("one or more operations returned errors")
	}
	return nil
}

func cmdMutate(args []string) error {
	var ef endpointFlags
	fs := flag.NewFlagSet("mutate", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	ef.register(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, mutateUsage)
		return err
	}

	url, copts, _, err := ef.resolve()
	if err != nil {
		return err
	}
	documents, err := collectDocuments(&ef)
	if err != nil {
		return err
	}
	if len(documents) > 1 {
		return fmt.Errorf("mutate accepts a single document")
	}
	vars, err := ef.parseVariables()
	if err != nil {
		return err
	}

	eventbus.Use(eventbus.New())
	shutdown, err := otel.Setup(ef.otelAddr, ef.otelSvc)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	c, err := client.New(url, &http.Client{Timeout: ef.timeout}, copts...)
	if err != nil {
		return err
	}

	for _, doc := range documents {
		res, err := c.ExecuteMutation(context.Background(), operation.Operation{Query: doc, Variables: vars})
		if err != nil {
			return err
		}
		printResult(res, ef.pretty)
		if res.Error != nil {
			return fmt.Errorf("mutation returned errors")
		}
	}
	return nil
}

// collectDocuments gathers query documents from -query and -file flags,
// keyed by a display name.
func collectDocuments(ef *endpointFlags) (map[string]string, error) {
	documents := map[string]string{}
	if ef.queryText != "" {
		documents["(inline)"] = ef.queryText
	}
	for _, path := range ef.files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		documents[path] = string(data)
	}
	if len(documents) == 0 {
		return nil, fmt.Errorf("no query document: set -query or -file")
	}
	return documents, nil
}

// wireResult is the printed response shape: data plus flattened errors.
type wireResult struct {
	Data   json.RawMessage `json:"data"`
	Errors []wireError     `json:"errors,omitempty"`
}

type wireError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func toWire(res result.OperationResult) wireResult {
	out := wireResult{Data: res.Data}
	if res.Error == nil {
		return out
	}
	if res.Error.IsNetwork() {
		out.Errors = []wireError{{Message: res.Error.Error()}}
		return out
	}
	for _, e := range res.Error.GraphQLErrors {
		out.Errors = append(out.Errors, wireError{Message: e.Message, Path: e.Path, Extensions: e.Extensions})
	}
	return out
}

func printResult(res result.OperationResult, pretty bool) {
	enc := json.NewEncoder(os.Stdout)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(toWire(res))
}

func sortedNames(m map[string]string) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
