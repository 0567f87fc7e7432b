// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// setFlagsFromConfigFile sets every flag named in the file which was not given on
// the command line.
func setFlagsFromConfigFile(cmd *cobra.Command, filePath string) error {
	fileConfig := make(map[string]interface{})

	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	switch filepath.Ext(filePath) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fileConfig)
	case ".toml":
		err = toml.Unmarshal(data, &fileConfig)
	default:
		return errors.New("config files only accepted are .yaml and .toml")
	}
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	for key, value := range fileConfig {
		if err := setFlag(flags, key, value); err != nil {
			return err
		}
	}
	return nil
}

func setFlag(flags *pflag.FlagSet, key string, value interface{}) error {
	f := flags.Lookup(key)
	if f == nil {
		return fmt.Errorf("unknown flag %q", key)
	}
	if f.Changed {
		return nil
	}
	var s string
	if reflect.ValueOf(value).Kind() == reflect.Slice {
		items := value.([]interface{})
		parts := make([]string, len(items))
		for i, v := range items {
			parts[i] = fmt.Sprintf("%v", v)
		}
		s = strings.Join(parts, ",")
	} else {
		s = fmt.Sprintf("%v", value)
	}
	if err := flags.Set(key, s); err != nil {
		return fmt.Errorf("failed setting %s flag with value=%v error=%w", key, value, err)
	}
	return nil
}
