package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/dgnsrekt/ttsmem/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	configShow bool

	configCmd = &cobra.Command{
		Use:     "config",
		Hidden:  false,
		Short:   "Edit the ttsmem config file",
		Long:    paragraph(fmt.Sprintf("\n%s the ttsmem config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created. With --show, print the effective configuration instead.", keyword("Edit"))),
		Example: paragraph("ttsmem config\nttsmem config --config path/to/config.yml\nttsmem config --show"),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if configShow {
				return showConfig(cmd)
			}

			if err := ensureConfigFile(); err != nil {
				return err
			}

			c, err := editor.Cmd("ttsmem", configFile)
			if err != nil {
				return fmt.Errorf("unable to set config file: %w", err)
			}
			c.Stdin = os.Stdin
			c.Stdout = os.Stdout
			c.Stderr = os.Stderr
			if err := c.Run(); err != nil {
				return fmt.Errorf("unable to run command: %w", err)
			}

			if _, err := config.LoadFile(configFile); err != nil {
				fmt.Println(alert("The config file has errors:"), err)
			}
			fmt.Println("Wrote config file to:", configFile)
			return nil
		},
	}
)

func init() {
	configCmd.Flags().BoolVar(&configShow, "show", false, "print the effective configuration as YAML")
}

func showConfig(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("unable to encode config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(b)
	return err
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = defaultConfigFile()
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(config.Template); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
