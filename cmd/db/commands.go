package db

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dotKV/cmd/util"
	"github.com/spf13/cobra"
)

var (
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value at a dot-path key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := db.Get(args[0])
			if err != nil {
				return err
			}
			return printJSON(value)
		},
	}
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value at a dot-path key, creating missing parents",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := db.Set(cmd.Context(), args[0], util.ParseValue(args[1]))
			if err != nil {
				return err
			}
			return printJSON(value)
		},
	}
	deleteCmd = &cobra.Command{
		Use:   "delete [key]",
		Short: "Deletes the value at a dot-path key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deleted, err := db.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, deleted=%t\n", args[0], deleted)
			return nil
		},
	}
	hasCmd = &cobra.Command{
		Use:   "has [key]",
		Short: "Checks if a dot-path key holds a value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			found, err := db.Has(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%t\n", args[0], found)
			return nil
		},
	}
	addCmd = &cobra.Command{
		Use:   "add [key] [number]",
		Short: "Adds a number to the value at a key (absent values count as 0)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := db.Add(cmd.Context(), args[0], util.ParseValue(args[1]))
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	subtractCmd = &cobra.Command{
		Use:   "subtract [key] [number]",
		Short: "Subtracts a number from the value at a key (absent values count as 0)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := db.Subtract(cmd.Context(), args[0], util.ParseValue(args[1]))
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	pushCmd = &cobra.Command{
		Use:   "push [key] [value...]",
		Short: "Appends values to the array at a key",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			values := make([]any, 0, len(args)-1)
			for _, arg := range args[1:] {
				values = append(values, util.ParseValue(arg))
			}
			arr, err := db.Push(cmd.Context(), args[0], values...)
			if err != nil {
				return err
			}
			return printJSON(arr)
		},
	}
	pullCmd = &cobra.Command{
		Use:   "pull [key] [index] [value]",
		Short: "Replaces the array element at an index (negative indexes count from the end)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			arr, err := db.Pull(cmd.Context(), args[0], util.ParseValue(args[1]), util.ParseValue(args[2]))
			if err != nil {
				return err
			}
			return printJSON(arr)
		},
	}
	popCmd = &cobra.Command{
		Use:   "pop [key] [index...]",
		Short: "Removes the array elements at the given indexes, one after another",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			indexes := make([]any, 0, len(args)-1)
			for _, arg := range args[1:] {
				indexes = append(indexes, util.ParseValue(arg))
			}
			arr, err := db.Pop(cmd.Context(), args[0], indexes...)
			if err != nil {
				return err
			}
			return printJSON(arr)
		},
	}
	keysCmd = &cobra.Command{
		Use:   "keys [key]",
		Short: "Lists the keys of the object at a key (or of the database)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := db.Keys(optionalKey(args))
			if err != nil {
				return err
			}
			return printJSON(keys)
		},
	}
	valuesCmd = &cobra.Command{
		Use:   "values [key]",
		Short: "Lists the values of the object at a key (or of the database)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := db.Values(optionalKey(args))
			if err != nil {
				return err
			}
			return printJSON(values)
		},
	}
	allCmd = &cobra.Command{
		Use:   "all",
		Short: "Prints the whole database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(db.All())
		},
	}
	rawCmd = &cobra.Command{
		Use:   "raw",
		Short: "Prints the persisted documents of the collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := db.Raw(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(entries)
		},
	}
	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Deletes every key of the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cleared, err := db.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("database=%s, cleared=%t\n", db.Name(), cleared)
			return nil
		},
	}
	randomCmd = &cobra.Command{
		Use:   "random [key]",
		Short: "Prints a random element of the array at a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := db.Random(args[0])
			if err != nil {
				return err
			}
			return printJSON(value)
		},
	}
	pingCmd = &cobra.Command{
		Use:   "ping",
		Short: "Measures the write, read and delete latency of the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			latency, err := db.Ping(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("write=%s, read=%s, delete=%s\n", latency.Write, latency.Read, latency.Delete)
			return nil
		},
	}
)

// optionalKey returns the first argument or "" (the database root)
func optionalKey(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
