package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/meshnode-go/internal/cli/connection"
	"github.com/yndnr/meshnode-go/internal/cli/output"
	"github.com/yndnr/meshnode-go/internal/server/httpserver"
)

// StatusCommand queries the status listener of a running node.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the state of a running node",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Aliases: []string{"a"},
				Usage:   "Status listener address (metrics.addr of the node)",
				EnvVars: []string{"MESHNODE_STATUS_ADDR"},
				Value:   "127.0.0.1:9464",
			},
		},
		Action: nodeStatus,
	}
}

type statusView struct {
	httpserver.StateResponse `yaml:",inline"`
	Daemon                   bool   `json:"daemon" yaml:"daemon"`
	Health                   string `json:"health" yaml:"health"`
}

func (v statusView) Table() *output.Table {
	t := output.NewTable("FIELD", "VALUE")
	t.AddRow("node", v.Node)
	t.AddRow("state", v.State)
	t.AddRow("node_path", v.NodePath)
	t.AddRow("policy", v.Policy)
	t.AddRow("daemon", fmt.Sprint(v.Daemon))
	t.AddRow("health", v.Health)
	return t
}

func nodeStatus(c *cli.Context) error {
	client := connection.NewStatusClient(c.String("addr"))

	state, err := client.State(c.Context)
	if err != nil {
		return fmt.Errorf("query %s: %w", client.BaseURL(), err)
	}
	health, err := client.Health(c.Context)
	if err != nil {
		return fmt.Errorf("query %s: %w", client.BaseURL(), err)
	}

	return render(c, statusView{
		StateResponse: *state,
		Daemon:        health.Daemon,
		Health:        health.Status,
	})
}
