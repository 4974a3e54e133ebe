package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"devdash/internal/ports"
)

// PortAllocator is the subset of ports.Allocator the HTTP layer uses.
type PortAllocator interface {
	Allocate(category string) (int, error)
	RangeFor(category string) ports.Range
	IsAvailable(port int) bool
	IsAllocated(port int) bool
	Release(port int)
	Allocated() []int
}

type PortHandler struct {
	alloc PortAllocator
}

func NewPortHandler(alloc PortAllocator) *PortHandler {
	return &PortHandler{alloc: alloc}
}

type allocateRequest struct {
	Category string `json:"category"`
}

type PortResponse struct {
	Port      int    `json:"port"`
	Category  string `json:"category,omitempty"`
	Range     string `json:"range,omitempty"`
	Available bool   `json:"available"`
	Allocated bool   `json:"allocated"`
}

type AllocatedResponse struct {
	Ports []int `json:"ports"`
}

// List reports the ports currently reserved by the allocator.
func (h *PortHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, AllocatedResponse{Ports: h.alloc.Allocated()})
}

func (h *PortHandler) Allocate(w http.ResponseWriter, r *http.Request) {
	var req allocateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	port, err := h.alloc.Allocate(req.Category)
	if err != nil {
		writeError(w, statusFor(err), err, "No free port for "+req.Category)
		return
	}

	writeJSON(w, http.StatusOK, PortResponse{
		Port:      port,
		Category:  req.Category,
		Range:     h.alloc.RangeFor(req.Category).String(),
		Available: true,
		Allocated: true,
	})
}

func (h *PortHandler) Check(w http.ResponseWriter, r *http.Request) {
	port, ok := h.portVar(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, PortResponse{
		Port:      port,
		Available: h.alloc.IsAvailable(port),
		Allocated: h.alloc.IsAllocated(port),
	})
}

// Release drops an allocation made through Allocate.
func (h *PortHandler) Release(w http.ResponseWriter, r *http.Request) {
	port, ok := h.portVar(w, r)
	if !ok {
		return
	}
	h.alloc.Release(port)
	writeJSON(w, http.StatusOK, SuccessResponse{
		Status:  "released",
		Message: "Port " + strconv.Itoa(port) + " released",
	})
}

func (h *PortHandler) portVar(w http.ResponseWriter, r *http.Request) (int, bool) {
	port, err := strconv.Atoi(mux.Vars(r)["port"])
	if err != nil || port < 1 || port > 65535 {
		writeError(w, http.StatusBadRequest, errBadRequest, "port must be between 1 and 65535")
		return 0, false
	}
	return port, true
}
