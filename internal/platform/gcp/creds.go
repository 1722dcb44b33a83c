package gcp

import (
	"os"
	"strings"

	"google.golang.org/api/option"
)

var credentialEnvKeys = []string{"GOOGLE_APPLICATION_CREDENTIALS_JSON", "GOOGLE_APPLICATION_CREDENTIALS"}

// ClientOptionsFromEnv returns explicit credentials for the archive and warehouse clients. Either
// key may hold inline JSON; GOOGLE_APPLICATION_CREDENTIALS may also name a key file. With neither
// set the clients use application default credentials.
func ClientOptionsFromEnv() []option.ClientOption {
	for _, key := range credentialEnvKeys {
		v := strings.TrimSpace(os.Getenv(key))
		switch {
		case v == "":
			continue
		case strings.HasPrefix(v, "{"):
			return []option.ClientOption{option.WithCredentialsJSON([]byte(v))}
		default:
			return []option.ClientOption{option.WithCredentialsFile(v)}
		}
	}
	return nil
}

func HasCredentials() bool {
	return len(ClientOptionsFromEnv()) > 0
}
