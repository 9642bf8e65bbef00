package mongoutil

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
)

const (
	defaultMaxPoolSize = 100
	defaultMaxRetry    = 3
)

func buildMongoURI(config *Config, authSource string) string {
	hosts := strings.Join(config.Address, ",")
	if config.Username != "" && config.Password != "" {
		hosts = fmt.Sprintf("%s:%s@%s", config.Username, config.Password, hosts)
	}
	return fmt.Sprintf("mongodb://%s/%s?authSource=%s&maxPoolSize=%d",
		hosts, config.Database, authSource, config.MaxPoolSize)
}

// shouldRetry reports whether a connect error is worth another attempt;
// auth failures (13, 18) are not.
func shouldRetry(ctx context.Context, err error) bool {
	select {
	case <-ctx.Done():
		return false
	default:
	}
	if cmdErr, ok := err.(mongo.CommandError); ok {
		return cmdErr.Code != 13 && cmdErr.Code != 18
	}
	return true
}
