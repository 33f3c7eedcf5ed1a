package main

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/auditmos/dianoia/logging"
	"github.com/auditmos/dianoia/storage"
	"github.com/urfave/cli/v2"
)

var settingAliases = map[string]string{
	"debug": logging.StoreKeyDebug,
	"level": logging.StoreKeyDebugLevel,
}

func settingKey(name string) (string, error) {
	if key, ok := settingAliases[strings.ToLower(name)]; ok {
		return key, nil
	}
	for _, key := range settingAliases {
		if name == key {
			return key, nil
		}
	}
	return "", fmt.Errorf("unknown setting %q (use debug or level)", name)
}

func normalizeSetting(key, value string) (string, error) {
	switch key {
	case logging.StoreKeyDebug:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return "", fmt.Errorf("invalid boolean %q", value)
		}
		return strconv.FormatBool(b), nil
	case logging.StoreKeyDebugLevel:
		level, ok := logging.LookupLevel(value)
		if !ok {
			return "", fmt.Errorf("invalid level %q", value)
		}
		return level.String(), nil
	}
	return value, nil
}

func withDB(c *cli.Context, fn func(db *sql.DB) error) error {
	path, err := resolveDBPath(c)
	if err != nil {
		return fmt.Errorf("get db path: %w", err)
	}
	db, err := storage.OpenDB(path)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()
	return fn(db)
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "read or change the persisted debug settings",
		Flags: []cli.Flag{dbFlag()},
		Subcommands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "print one setting, or all of them",
				ArgsUsage: "[debug|level]",
				Action: func(c *cli.Context) error {
					return withDB(c, func(db *sql.DB) error {
						return runConfigGet(storage.NewSQLiteSettingsRepo(db), c.Args().First(), c.App.Writer)
					})
				},
			},
			{
				Name:      "set",
				Usage:     "persist a setting",
				ArgsUsage: "<debug|level> <value>",
				Action: func(c *cli.Context) error {
					if c.NArg() < 2 {
						return fmt.Errorf("setting name and value required")
					}
					return withDB(c, func(db *sql.DB) error {
						return runConfigSet(storage.NewSQLiteSettingsRepo(db), c.Args().Get(0), c.Args().Get(1))
					})
				},
			},
			{
				Name:      "unset",
				Usage:     "remove a persisted setting",
				ArgsUsage: "<debug|level>",
				Action: func(c *cli.Context) error {
					if c.NArg() < 1 {
						return fmt.Errorf("setting name required")
					}
					return withDB(c, func(db *sql.DB) error {
						key, err := settingKey(c.Args().First())
						if err != nil {
							return err
						}
						return storage.NewSQLiteSettingsRepo(db).Delete(key)
					})
				},
			},
		},
	}
}

func runConfigGet(repo storage.SettingsRepo, name string, out io.Writer) error {
	if out == nil {
		out = os.Stdout
	}
	if name == "" {
		all, err := repo.All()
		if err != nil {
			return err
		}
		for _, s := range all {
			fmt.Fprintf(out, "%s=%s\n", s.Key, s.Value)
		}
		return nil
	}

	key, err := settingKey(name)
	if err != nil {
		return err
	}
	value, ok, err := repo.Get(key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s is not set", key)
	}
	fmt.Fprintln(out, value)
	return nil
}

func runConfigSet(repo storage.SettingsRepo, name, value string) error {
	key, err := settingKey(name)
	if err != nil {
		return err
	}
	normalized, err := normalizeSetting(key, value)
	if err != nil {
		return err
	}
	return repo.Set(key, normalized)
}

func rulesCommand() *cli.Command {
	return &cli.Command{
		Name:  "rules",
		Usage: "manage the keys redacted from log data",
		Flags: []cli.Flag{dbFlag()},
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list redaction rules",
				Action: func(c *cli.Context) error {
					return withDB(c, func(db *sql.DB) error {
						repo := storage.NewSQLiteRedactionRuleRepo(db)
						if err := repo.Seed(); err != nil {
							return err
						}
						rules, err := repo.GetAll()
						if err != nil {
							return err
						}
						for _, r := range rules {
							fmt.Fprintf(c.App.Writer, "%s\t%s\n", r.ID, r.Pattern)
						}
						return nil
					})
				},
			},
			{
				Name:      "add",
				Usage:     "redact values stored under this key",
				ArgsUsage: "<key>",
				Action: func(c *cli.Context) error {
					if c.NArg() < 1 {
						return fmt.Errorf("key argument required")
					}
					return withDB(c, func(db *sql.DB) error {
						rule, err := storage.NewSQLiteRedactionRuleRepo(db).Create(c.Args().First())
						if err != nil {
							return err
						}
						fmt.Fprintf(c.App.Writer, "%s\t%s\n", rule.ID, rule.Pattern)
						return nil
					})
				},
			},
			{
				Name:      "remove",
				Usage:     "delete a redaction rule by id",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					if c.NArg() < 1 {
						return fmt.Errorf("rule id required")
					}
					return withDB(c, func(db *sql.DB) error {
						return storage.NewSQLiteRedactionRuleRepo(db).Delete(c.Args().First())
					})
				},
			},
		},
	}
}
