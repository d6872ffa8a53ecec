/*
   Copyright @ 2021 bocloud <fushaosong@beyondcent.com>.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package run

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	deviceManager "github.com/carina-io/zbcache/pkg/devicemanager"
	"github.com/spf13/cobra"
)

var statusOutput string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show zram and bcache devices with their settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		status, err := deviceManager.NewDeviceManager(config).Status()
		if err != nil {
			return err
		}
		return printStatus(os.Stdout, status, statusOutput)
	},
}

func init() {
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "text", "text or json")
}

func printStatus(out io.Writer, status *deviceManager.Status, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	case "text":
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	w := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "DEVICE\tBLOCK\tREAD IOS\tWRITE IOS\tATTRIBUTES")
	for _, ds := range append(status.Zram, status.Bcache...) {
		reads, writes := "-", "-"
		if ds.Stats != nil {
			reads = fmt.Sprint(ds.Stats.ReadIOs)
			writes = fmt.Sprint(ds.Stats.WriteIOs)
		}
		fmt.Fprintf(w, "%s\t%t\t%s\t%s\t%s\n", ds.Path, ds.BlockDevice, reads, writes, formatAttributes(ds.Attributes))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nbacking device %s, bcache attached: %t\n", status.BackingDevice, status.BackingAttached)
	if d := status.BackingDisk; d != nil {
		fmt.Fprintf(out, "disk %s: %s %s, %d bytes\n", d.Name, d.Vendor, d.Model, d.SizeBytes)
		if d.MountPoint != "" {
			fmt.Fprintf(out, "partition %s mounted on %s\n", d.Partition, d.MountPoint)
		}
	}
	return nil
}

func formatAttributes(attrs map[string]string) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+attrs[k])
	}
	return strings.Join(pairs, " ")
}
