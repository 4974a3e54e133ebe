package consul

import (
	"net"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	consulapi "github.com/hashicorp/consul/api"

	"devdash/internal/models"
)

const servicePrefix = "devdash-"

type serviceAgent interface {
	ServiceRegister(service *consulapi.AgentServiceRegistration) error
	ServiceDeregister(serviceID string) error
}

// Registrar advertises running dev servers in the local Consul catalog and
// removes them when they exit.
type Registrar struct {
	agent  serviceAgent
	host   string
	logger *log.Logger
}

func NewRegistrar(c *Client, host string, logger *log.Logger) *Registrar {
	return newRegistrar(c.api.Agent(), host, logger)
}

func newRegistrar(agent serviceAgent, host string, logger *log.Logger) *Registrar {
	if host == "" {
		host = "127.0.0.1"
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Registrar{agent: agent, host: host, logger: logger}
}

// ServiceID is the Consul service id for a process id.
func ServiceID(processID string) string {
	return servicePrefix + strings.ReplaceAll(processID, ":", "-")
}

// Registration describes info as a Consul service with a TCP check on its
// port.
func Registration(info models.Process, host string) *consulapi.AgentServiceRegistration {
	return &consulapi.AgentServiceRegistration{
		ID:      ServiceID(info.ID),
		Name:    servicePrefix + info.ProjectID,
		Tags:    []string{info.ProjectID, info.ProcessName},
		Port:    info.Port,
		Address: host,
		Meta: map[string]string{
			"process": info.ID,
			"run_id":  info.RunID,
			"pid":     strconv.Itoa(info.Pid),
		},
		Check: &consulapi.AgentServiceCheck{
			TCP:                            net.JoinHostPort(host, strconv.Itoa(info.Port)),
			Interval:                       "10s",
			Timeout:                        "2s",
			DeregisterCriticalServiceAfter: "5m",
		},
	}
}

func (r *Registrar) ProcessStarted(info models.Process) {
	if err := r.agent.ServiceRegister(Registration(info, r.host)); err != nil {
		r.logger.Warn("consul register failed", "id", info.ID, "error", err)
		return
	}
	r.logger.Debug("registered in consul", "id", info.ID, "port", info.Port)
}

func (r *Registrar) ProcessExited(info models.Process, _ []models.LogEntry) {
	if err := r.agent.ServiceDeregister(ServiceID(info.ID)); err != nil {
		r.logger.Warn("consul deregister failed", "id", info.ID, "error", err)
	}
}
