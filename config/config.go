// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/gorse-io/factorize/model"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

// Config is the configuration of a training run.
type Config struct {
	Data     DataConfig     `mapstructure:"data"`
	Training TrainingConfig `mapstructure:"training"`
	Output   OutputConfig   `mapstructure:"output"`
}

// DataConfig is the configuration of the rating source. Ratings are read from
// SQLite if sqlite_path is set, otherwise from the CSV file at ratings_path.
type DataConfig struct {
	RatingsPath string `mapstructure:"ratings_path" validate:"required_without=SQLitePath"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	SQLiteTable string `mapstructure:"sqlite_table" validate:"required"`
}

type TrainingConfig struct {
	NFactors      int     `mapstructure:"n_factors" validate:"gt=0"`
	Reg           float64 `mapstructure:"reg" validate:"gte=0"`
	Lr            float64 `mapstructure:"lr" validate:"gte=0"`
	NEpochs       int     `mapstructure:"n_epochs" validate:"gt=0"`
	RandomState   int64   `mapstructure:"random_state"`
	Jobs          int     `mapstructure:"jobs" validate:"gt=0"`
	Verbose       int     `mapstructure:"verbose" validate:"gte=0"`
	PreUpdateUser bool    `mapstructure:"pre_update_user"`
}

type OutputConfig struct {
	Dir          string `mapstructure:"dir" validate:"required"`
	PreviewRows  int    `mapstructure:"preview_rows" validate:"gte=0"`
	TopN         int    `mapstructure:"top_n" validate:"gt=0"`
	ExampleUsers []int  `mapstructure:"example_users" validate:"dive,gte=0,lte=2147483647"`
	DumpFactors  bool   `mapstructure:"dump_factors"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			RatingsPath: "data/ratings.csv",
			SQLiteTable: "ratings",
		},
		Training: TrainingConfig{
			NFactors: 10,
			Reg:      0.1,
			Lr:       0.01,
			NEpochs:  30,
			Jobs:     1,
			Verbose:  10,
		},
		Output: OutputConfig{
			Dir:          ".",
			PreviewRows:  5,
			TopN:         5,
			ExampleUsers: []int{0},
		},
	}
}

// Params converts training options into hyper-parameters.
func (config *TrainingConfig) Params() model.Params {
	return model.Params{
		model.NFactors:      config.NFactors,
		model.Reg:           config.Reg,
		model.Lr:            config.Lr,
		model.NEpochs:       config.NEpochs,
		model.RandomState:   config.RandomState,
		model.PreUpdateUser: config.PreUpdateUser,
	}
}

func (config *Config) Validate() error {
	validate := validator.New()
	return errors.Trace(validate.Struct(config))
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [data]
	v.SetDefault("data.ratings_path", defaultConfig.Data.RatingsPath)
	v.SetDefault("data.sqlite_path", defaultConfig.Data.SQLitePath)
	v.SetDefault("data.sqlite_table", defaultConfig.Data.SQLiteTable)
	// [training]
	v.SetDefault("training.n_factors", defaultConfig.Training.NFactors)
	v.SetDefault("training.reg", defaultConfig.Training.Reg)
	v.SetDefault("training.lr", defaultConfig.Training.Lr)
	v.SetDefault("training.n_epochs", defaultConfig.Training.NEpochs)
	v.SetDefault("training.random_state", defaultConfig.Training.RandomState)
	v.SetDefault("training.jobs", defaultConfig.Training.Jobs)
	v.SetDefault("training.verbose", defaultConfig.Training.Verbose)
	v.SetDefault("training.pre_update_user", defaultConfig.Training.PreUpdateUser)
	// [output]
	v.SetDefault("output.dir", defaultConfig.Output.Dir)
	v.SetDefault("output.preview_rows", defaultConfig.Output.PreviewRows)
	v.SetDefault("output.top_n", defaultConfig.Output.TopN)
	v.SetDefault("output.example_users", defaultConfig.Output.ExampleUsers)
	v.SetDefault("output.dump_factors", defaultConfig.Output.DumpFactors)
}

type configBinding struct {
	key string
	env string
}

func bindEnv(v *viper.Viper) error {
	bindings := []configBinding{
		{"data.ratings_path", "FACTORIZE_RATINGS_PATH"},
		{"data.sqlite_path", "FACTORIZE_SQLITE_PATH"},
		{"data.sqlite_table", "FACTORIZE_SQLITE_TABLE"},
		{"training.n_factors", "FACTORIZE_N_FACTORS"},
		{"training.reg", "FACTORIZE_REG"},
		{"training.lr", "FACTORIZE_LR"},
		{"training.n_epochs", "FACTORIZE_N_EPOCHS"},
		{"training.random_state", "FACTORIZE_RANDOM_STATE"},
		{"training.jobs", "FACTORIZE_JOBS"},
		{"training.verbose", "FACTORIZE_VERBOSE"},
		{"training.pre_update_user", "FACTORIZE_PRE_UPDATE_USER"},
		{"output.dir", "FACTORIZE_OUTPUT_DIR"},
		{"output.preview_rows", "FACTORIZE_PREVIEW_ROWS"},
		{"output.top_n", "FACTORIZE_TOP_N"},
		{"output.example_users", "FACTORIZE_EXAMPLE_USERS"},
		{"output.dump_factors", "FACTORIZE_DUMP_FACTORS"},
	}
	for _, binding := range bindings {
		if err := v.BindEnv(binding.key, binding.env); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// LoadConfig loads configuration from a TOML file. Environment variables
// override the file and defaults fill the rest. An empty path loads
// defaults and environment variables only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefault(v)
	if err := bindEnv(v); err != nil {
		return nil, errors.Trace(err)
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Annotatef(err, "read config %s", path)
		}
	}
	var config Config
	// FACTORIZE_EXAMPLE_USERS=0,3,7
	if err := v.Unmarshal(&config, viper.DecodeHook(mapstructure.StringToSliceHookFunc(","))); err != nil {
		return nil, errors.Trace(err)
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Annotate(err, "invalid config")
	}
	return &config, nil
}
