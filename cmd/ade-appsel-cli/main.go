package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/0xADE/ade-appsel/client/appsel"
)

func main() {
	app := &cli.Command{
		Name:  "ade-appsel-cli",
		Usage: "Pick, hide and rename apps through ade-appsel-ctld",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "hidden",
				Usage: "browse hidden apps instead of the regular list",
			},
			&cli.BoolFlag{
				Name:  "rename",
				Usage: "allow renaming apps",
			},
			&cli.StringFlag{
				Name:  "hint",
				Usage: "search hint shown by the selector",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List all apps",
				Action: runList,
			},
			{
				Name:      "pick",
				Usage:     "Filter apps and print the selection when one remains",
				ArgsUsage: "<query>",
				Action:    runPick,
			},
			keyCommand("select", "Select an app", (*appsel.Client).Select),
			keyCommand("hide", "Hide an app, or unhide it with --hidden", (*appsel.Client).Hide),
			keyCommand("delete", "Uninstall an app", (*appsel.Client).Delete),
			keyCommand("info", "Open the system details screen of an app", (*appsel.Client).Info),
			keyCommand("reset", "Restore the original label of an app", (*appsel.Client).ResetRename),
			{
				Name:      "menu",
				Usage:     "Show the actions available for an app",
				ArgsUsage: "<key>",
				Action:    runMenu,
			},
			{
				Name:      "rename",
				Usage:     "Give an app a custom label",
				ArgsUsage: "<key> <label>",
				Action:    runRename,
			},
			{
				Name:   "interactive",
				Usage:  "Type to filter, :commands to act",
				Action: runInteractive,
			},
			{
				Name:   "raw",
				Usage:  "Send protocol commands read from stdin",
				Action: runRaw,
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func openSession(cmd *cli.Command) (*appsel.Client, error) {
	client, err := appsel.NewClient()
	if err != nil {
		return nil, err
	}
	if _, err := client.Open(cmd.Bool("hidden"), cmd.Bool("rename"), cmd.String("hint")); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func keyCommand(name, usage string, fn func(*appsel.Client, string) (*appsel.Response, error)) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "<key>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("%s requires an app key", name)
			}
			client, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			resp, err := fn(client, cmd.Args().Get(0))
			if err != nil {
				return err
			}
			printResponse(resp)
			return nil
		},
	}
}

func runList(ctx context.Context, cmd *cli.Command) error {
	client, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	return printAll(client)
}

func printAll(client *appsel.Client) error {
	apps, _, err := client.List(0, 0)
	for err == nil && len(apps) > 0 {
		printApps(apps)
		apps, _, err = client.ListNext(0)
	}
	return err
}

func runPick(ctx context.Context, cmd *cli.Command) error {
	client, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	resp, err := client.Query(strings.Join(cmd.Args().Slice(), " "))
	if err != nil {
		return err
	}
	if resp.Done() {
		printResponse(resp)
		return nil
	}
	return printAll(client)
}

func runMenu(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return errors.New("menu requires an app key")
	}
	client, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	menu, err := client.Hold(cmd.Args().Get(0))
	if err != nil {
		return err
	}
	fmt.Printf("%s\t%s\n", menu.Key, menu.Label)
	fmt.Printf("  %s\n", menu.HideLabel)
	if menu.CanRename {
		fmt.Println("  rename")
	}
	if menu.CanDelete {
		fmt.Println("  delete")
	}
	fmt.Println("  info")
	return nil
}

func runRename(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() < 2 {
		return errors.New("rename requires an app key and a label")
	}
	client, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	args := cmd.Args().Slice()
	resp, err := client.Rename(args[0], strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	printResponse(resp)
	return nil
}

func runInteractive(ctx context.Context, cmd *cli.Command) error {
	client, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("Type to filter, :help for commands, :quit to leave.")
	fmt.Print("> ")

	for scanner.Scan() {
		line := scanner.Text()

		resp, quit, err := interactiveStep(client, line)
		if quit {
			break
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		} else if resp != nil {
			printResponse(resp)
			if resp.Done() {
				return nil
			}
		}
		fmt.Print("> ")
	}
	return scanner.Err()
}

func interactiveStep(client *appsel.Client, line string) (*appsel.Response, bool, error) {
	if !strings.HasPrefix(line, ":") {
		resp, err := client.Query(line)
		if err != nil || resp.Done() {
			return resp, false, err
		}
		apps, _, err := client.List(0, 0)
		printApps(apps)
		return nil, false, err
	}

	fields := strings.Fields(line[1:])
	if len(fields) == 0 {
		return nil, false, nil
	}
	name, args := fields[0], fields[1:]
	key := ""
	if len(args) > 0 {
		key = args[0]
	}

	switch name {
	case "quit", "exit", "q":
		return nil, true, nil
	case "help":
		fmt.Println(":list :next :submit :select KEY :menu KEY :close :hide KEY :delete KEY :info KEY :rename KEY LABEL :reset KEY :refresh :dismiss :quit")
		return nil, false, nil
	case "list":
		apps, _, err := client.List(0, 0)
		printApps(apps)
		return nil, false, err
	case "next":
		apps, _, err := client.ListNext(0)
		printApps(apps)
		return nil, false, err
	case "submit":
		resp, err := client.Submit()
		return resp, false, err
	case "select":
		resp, err := client.Select(key)
		return resp, false, err
	case "menu":
		menu, err := client.Hold(key)
		if err == nil {
			fmt.Printf("%s: %s rename=%v delete=%v\n", menu.Label, menu.HideLabel, menu.CanRename, menu.CanDelete)
		}
		return nil, false, err
	case "close":
		resp, err := client.CloseMenu()
		return resp, false, err
	case "hide":
		resp, err := client.Hide(key)
		return resp, false, err
	case "delete":
		resp, err := client.Delete(key)
		return resp, false, err
	case "info":
		resp, err := client.Info(key)
		return resp, false, err
	case "rename":
		label := ""
		if len(args) > 1 {
			label = strings.Join(args[1:], " ")
		}
		resp, err := client.Rename(key, label)
		return resp, false, err
	case "reset":
		resp, err := client.ResetRename(key)
		return resp, false, err
	case "refresh":
		resp, err := client.Refresh()
		return resp, false, err
	case "dismiss":
		resp, err := client.Dismiss()
		return resp, false, err
	}
	return nil, false, fmt.Errorf("unknown command :%s", name)
}

// runRaw forwards "command arg..." lines as protocol requests
func runRaw(ctx context.Context, cmd *cli.Command) error {
	client, err := appsel.NewClient()
	if err != nil {
		return err
	}
	defer client.Close()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		args := make([]string, 0, len(parts)-1)
		for _, arg := range parts[1:] {
			args = append(args, appsel.FormatArgument(arg))
		}

		resp, err := client.Do(parts[0], args...)
		if err != nil && resp == nil {
			return err
		}
		for k, v := range resp.Attrs {
			fmt.Printf("%s: %s\n", k, v)
		}
		for _, line := range resp.Body {
			fmt.Println(line)
		}
		fmt.Println()
	}
	return scanner.Err()
}

func printApps(apps []appsel.App) {
	for _, app := range apps {
		mark := ""
		if app.Other {
			mark += " ⧉"
		}
		if app.New {
			mark += " ✨"
		}
		fmt.Printf("%s\t%s%s\n", app.Key, app.Label, mark)
	}
}

func printResponse(resp *appsel.Response) {
	for _, n := range resp.Notices {
		fmt.Fprintf(os.Stderr, "%s\n", n)
	}
	if pkg, component, ok := resp.Selected(); ok {
		fmt.Printf("%s/%s\n", pkg, component)
		return
	}
	if resp.Attrs["result"] == "cancelled" {
		fmt.Println("cancelled")
	}
}
