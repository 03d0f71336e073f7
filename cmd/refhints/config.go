package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lexcodex/refhints/internal/settings"
)

// newConfigCmd registers subcommands that inspect or mutate the settings
// file.
func newConfigCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or modify the settings file",
	}
	cmd.AddCommand(newConfigShowCmd(c), newConfigGetCmd(c), newConfigSetCmd(c))
	return cmd
}

// newConfigShowCmd prints the effective settings after defaults and
// environment overrides.
func newConfigShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.loadSettings()
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(s)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

// newConfigGetCmd prints the value referenced by a dotted key.
func newConfigGetCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "get [key]",
		Short: "Read a settings value by dotted key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readConfigMap(c.cfg.ConfigPath)
			if err != nil {
				return err
			}
			value, ok := getConfigValue(data, args[0])
			if !ok {
				return fmt.Errorf("key %s not found", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), prettyValue(value))
			return nil
		},
	}
}

// newConfigSetCmd updates a dotted key. The result must still load.
func newConfigSetCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Update a settings value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.cfg.ConfigPath
			previous, readErr := os.ReadFile(path)
			data, err := readConfigMap(path)
			if err != nil {
				return err
			}
			if err := setConfigValue(data, args[0], parseValue(args[1])); err != nil {
				return err
			}
			if err := writeConfigMap(path, data); err != nil {
				return err
			}
			if _, err := settings.Load(path); err != nil {
				if readErr == nil {
					_ = os.WriteFile(path, previous, 0o644)
				} else {
					_ = os.Remove(path)
				}
				return fmt.Errorf("rejected %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s updated\n", args[0])
			return nil
		},
	}
}
