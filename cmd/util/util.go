package util

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ValentinKolb/dotKV/lib/dotpath"
	"github.com/ValentinKolb/dotKV/rpc/common"
	"github.com/ValentinKolb/dotKV/rpc/serializer"
	"github.com/ValentinKolb/dotKV/rpc/transport"
	"github.com/ValentinKolb/dotKV/rpc/transport/http"
	"github.com/ValentinKolb/dotKV/rpc/transport/tcp"
	"github.com/ValentinKolb/dotKV/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables read by the cli
	EnvPrefix = "dotkv"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// InitConfig loads .env files and makes viper read DOTKV_* environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// SetupRPCClientFlags adds common RPC connection flags to a command
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds of the client"))

	key = "transport-endpoints"
	cmd.PersistentFlags().String(key, "localhost:8080", WrapString("The address of the dotKV server (host:port, or the socket path for the unix transport). Multiple endpoints can be specified as a comma-separated list, requests are distributed round robin"))

	key = "transport-retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many times to retry a request that failed with a server error"))

	key = "transport-conn-per-endpoint"
	cmd.PersistentFlags().Int(key, 1, WrapString("(tcp, unix) Number of connections opened to every endpoint"))
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	var endpoints []string
	for _, e := range strings.Split(viper.GetString("transport-endpoints"), ",") {
		if e = strings.TrimSpace(e); e != "" {
			endpoints = append(endpoints, e)
		}
	}

	return &common.ClientConfig{
		Endpoints:              endpoints,
		TimeoutSecond:          viper.GetInt("timeout"),
		RetryCount:             viper.GetInt("transport-retries"),
		ConnectionsPerEndpoint: viper.GetInt("transport-conn-per-endpoint"),
	}
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	switch viper.GetString("serializer") {
	case "json":
		return serializer.NewJSONSerializer(), nil
	case "gob":
		return serializer.NewGOBSerializer(), nil
	case "binary":
		return serializer.NewBinarySerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}
}

// GetClientTransport creates the client transport selected by the --transport flag
func GetClientTransport() (transport.IRPCClientTransport, error) {
	switch viper.GetString("transport") {
	case "http":
		return http.NewHttpClientTransport(), nil
	case "tcp":
		return tcp.NewTCPClientTransport(), nil
	case "unix":
		return unix.NewUnixClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// GetServerTransport creates the server transport selected by the --transport flag.
// The socket transports use the --transport-workers-per-conn and --transport-buffer-size flags.
func GetServerTransport() (transport.IRPCServerTransport, error) {
	workers := viper.GetInt("transport-workers-per-conn")
	bufferSize := viper.GetInt("transport-buffer-size") * 1024

	switch viper.GetString("transport") {
	case "http":
		return http.NewHttpServerTransport(), nil
	case "tcp":
		if bufferSize <= 0 {
			return tcp.NewTCPDefaultServerTransport(), nil
		}
		return tcp.NewTCPServerTransport(bufferSize, workers), nil
	case "unix":
		if bufferSize <= 0 {
			return unix.NewUnixDefaultServerTransport(), nil
		}
		return unix.NewUnixServerTransport(bufferSize, workers), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// --------------------------------------------------------------------------
// Raft cluster helpers
// --------------------------------------------------------------------------

// ReplicaID maps a replica name to its numeric id. Plain numbers are used as is,
// every other name is hashed with FNV-1a so that all nodes derive the same id.
func ReplicaID(name string) (uint64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("replica id must not be empty")
	}
	if id, err := strconv.ParseUint(name, 10, 64); err == nil && id != 0 {
		return id, nil
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return h.Sum64(), nil
}

// ParseClusterMembers parses 'node-1=localhost:63001,node-2=localhost:63002' into
// a map from replica id to raft address.
func ParseClusterMembers(members string) (map[uint64]string, error) {
	result := make(map[uint64]string)
	for _, member := range strings.Split(members, ",") {
		if strings.TrimSpace(member) == "" {
			continue
		}
		parts := strings.Split(member, "=")
		if len(parts) != 2 || strings.TrimSpace(parts[1]) == "" {
			return nil, fmt.Errorf("invalid cluster member format: %s (expected ID=address)", member)
		}
		id, err := ReplicaID(parts[0])
		if err != nil {
			return nil, err
		}
		if _, dup := result[id]; dup {
			return nil, fmt.Errorf("duplicate cluster member %s", parts[0])
		}
		result[id] = strings.TrimSpace(parts[1])
	}
	return result, nil
}

// --------------------------------------------------------------------------
// Values
// --------------------------------------------------------------------------

// ParseValue parses a command line argument as JSON. Arguments that are not valid
// JSON are used as plain strings, so `set name alice` does not need quotes.
func ParseValue(arg string) any {
	var v any
	if err := json.Unmarshal([]byte(arg), &v); err != nil {
		return arg
	}
	return v
}

// LoadSeed reads the initial data of a database from a .json or .toml file.
// An empty path yields no seed.
func LoadSeed(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}

	var raw any
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		tree, err := toml.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("could not parse seed file %s: %w", path, err)
		}
		raw = tree.ToMap()
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("could not read seed file %s: %w", path, err)
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("could not parse seed file %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported seed file type %q (expected .json or .toml)", ext)
	}

	// toml yields int64 and time.Time values
	normalized, err := dotpath.Normalize(raw)
	if err != nil {
		return nil, err
	}
	seed, ok := normalized.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("seed file %s must contain an object", path)
	}
	return seed, nil
}
