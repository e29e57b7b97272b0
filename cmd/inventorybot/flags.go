package main

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// mustBind ties a flag to a config key so an explicitly set flag overrides
// the file and the environment.
func mustBind(v *viper.Viper, key string, f *pflag.Flag) {
	if err := v.BindPFlag(key, f); err != nil {
		panic(err)
	}
}
