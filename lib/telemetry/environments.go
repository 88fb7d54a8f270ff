package telemetry

import (
	"context"
	"os"
	"sync"
	"xeroreports/lib/configutil"
)

var (
	setupTestMu           sync.Mutex
	setupTestEnvironments = map[string]bool{}
)

// SetupForTesting sets up telemetry in a testing environment, ensuring that it isn't
// set up more than once per service name. A missing telemetry.json5 leaves the no-op
// providers in place.
func SetupForTesting(serviceName string) func() {
	setupTestMu.Lock()
	defer setupTestMu.Unlock()

	if setupTestEnvironments[serviceName] {
		return func() {}
	}
	setupTestEnvironments[serviceName] = true

	tel, err := SetupFromEnv(context.Background(), serviceName)
	if os.IsNotExist(err) {
		return func() {}
	}
	if err != nil {
		panic(err)
	}

	return func() {
		err := tel.Shutdown(context.Background())
		if err != nil {
			panic(err)
		}
	}
}

// searches up the filesystem from the cwd to find a file
// called telemetry.json5, once found it will then use it
// as a config to setup telemetry
func SetupFromEnv(ctx context.Context, serviceName string) (Telemetry, error) {
	config, err := configutil.ReadRecursively[Config]("telemetry.json5")
	if err != nil {
		return Telemetry{}, err
	}
	return Setup(ctx, serviceName, config)
}
