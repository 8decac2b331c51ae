package cmds

import (
	"testing"

	"github.com/spf13/viper"
)

func newTestViper(t *testing.T, values map[string]interface{}) *viper.Viper {
	t.Helper()
	v := viper.New()
	for k, val := range values {
		v.Set(k, val)
	}
	return v
}
