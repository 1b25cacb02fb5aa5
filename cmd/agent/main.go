package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	serverURL string
	timeout   time.Duration
)

const prologTemplate = `<?xml version="1.0" encoding="UTF-8" ?>
<REQUEST>
  <DEVICEID>%s</DEVICEID>
  <QUERY>PROLOG</QUERY>
</REQUEST>
`

var rootCmd = &cobra.Command{
	Use:   "ocsbridge-agent",
	Short: "Submit inventory to an ocsbridge server",
	Long: `ocsbridge-agent speaks both ingestion protocols of an ocsbridge server:
the legacy OCS XML endpoint (PROLOG handshake and full inventory, optionally
compressed) and the JSON endpoint. It can also query devices and health.`,
	SilenceUsage: true,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server and database health",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := NewClient(serverURL, timeout).Health()
		if err != nil {
			return err
		}
		log.Printf("✅ Server %s: %s (database %s)", serverURL, out["status"], out["database"])
		return nil
	},
}

var prologCmd = &cobra.Command{
	Use:   "prolog",
	Short: "Send an OCS PROLOG handshake",
	RunE: func(cmd *cobra.Command, args []string) error {
		deviceID, _ := cmd.Flags().GetString("device-id")
		if deviceID == "" {
			hostname, _ := os.Hostname()
			deviceID = hostname + time.Now().Format("-2006-01-02-15-04-05")
		}
		reply, code, err := NewClient(serverURL, timeout).SendXML([]byte(fmt.Sprintf(prologTemplate, deviceID)), "")
		if err != nil {
			return err
		}
		log.Printf("🤝 Handshake reply (%d): %s, resend every %sh", code, reply.Response, reply.PrologFreq)
		return nil
	},
}

var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Send an OCS XML inventory file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		compression, _ := cmd.Flags().GetString("compress")

		doc, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		reply, code, err := NewClient(serverURL, timeout).SendXML(doc, strings.ToLower(compression))
		if err != nil {
			return err
		}
		if reply.Response == "ERROR" || code >= 400 {
			return fmt.Errorf("server rejected inventory (%d): %s", code, reply.Error)
		}
		log.Printf("💾 Inventory accepted (%d): %s", code, reply.Response)
		return nil
	},
}

var jsonCmd = &cobra.Command{
	Use:   "json",
	Short: "Send a JSON inventory (a file, or this host when --file is omitted)",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")

		var payload []byte
		if path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			payload = data
		} else {
			rec, err := collectLocal()
			if err != nil {
				return err
			}
			if payload, err = json.Marshal(rec); err != nil {
				return err
			}
		}

		ack, err := NewClient(serverURL, timeout).SendJSON(payload)
		if err != nil {
			return err
		}
		log.Printf("💾 Inventory stored for %s (submission %s at %s)", ack["device_id"], ack["submission_id"], ack["timestamp"])
		return nil
	},
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Print the JSON inventory of this host without sending it",
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := collectLocal()
		if err != nil {
			return err
		}
		fmt.Println(prettyJSON(rec))
		return nil
	},
}

var devicesCmd = &cobra.Command{
	Use:   "devices [device_id]",
	Short: "List devices, or show one device in detail",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(serverURL, timeout)
		if len(args) == 1 {
			detail, err := client.Device(args[0])
			if err != nil {
				return err
			}
			fmt.Println(prettyJSON(detail))
			return nil
		}

		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		devices, err := client.Devices(limit, offset)
		if err != nil {
			return err
		}
		for _, d := range devices {
			hostname := "-"
			if d.Hostname != nil {
				hostname = *d.Hostname
			}
			fmt.Printf("%-40s %-24s %s\n", d.DeviceID, hostname, d.LastSeen.Format(time.RFC3339))
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8000", "ocsbridge server URL")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")

	prologCmd.Flags().String("device-id", "", "OCS DEVICEID to announce (default hostname plus timestamp)")

	inventoryCmd.Flags().StringP("file", "f", "", "OCS XML inventory file")
	inventoryCmd.Flags().StringP("compress", "c", "none", "body compression: zlib, gzip or none")
	inventoryCmd.MarkFlagRequired("file")

	jsonCmd.Flags().StringP("file", "f", "", "JSON inventory file")

	devicesCmd.Flags().Int("limit", 100, "maximum devices to list")
	devicesCmd.Flags().Int("offset", 0, "devices to skip")

	rootCmd.AddCommand(healthCmd, prologCmd, inventoryCmd, jsonCmd, collectCmd, devicesCmd)
}

func main() {
	log.SetFlags(log.Ltime | log.Ldate)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}
