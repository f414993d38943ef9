package executor

import "os"

func lookupHostEnv(key string) (string, bool) {
	return os.LookupEnv(key)
}
