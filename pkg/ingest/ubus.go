package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/MdrnDme/clutch/pkg/cellular"
)

// UbusSource acquires a Measurement by shelling out to ubus call
// mobiled status, grounded on
// pkg/gps/cellular_data_collector.go::getServingCellViaUbusMobiled.
// It is the primary, highest-priority Source on OpenWrt targets
// running mobiled.
type UbusSource struct{}

// Name identifies this source for logging.
func (UbusSource) Name() string { return "ubus-mobiled" }

type mobiledStatus struct {
	Device struct {
		Network struct {
			MCC        string `json:"mcc"`
			MNC        string `json:"mnc"`
			LAC        string `json:"lac"`
			CellID     string `json:"cellid"`
			Technology string `json:"technology"`
			ARFCN      int    `json:"arfcn"`
			PCI        int    `json:"pci"`
		} `json:"network"`
		Signal struct {
			RSRP  float64 `json:"rsrp"`
			RSRQ  float64 `json:"rsrq"`
			SINR  float64 `json:"sinr"`
			RSSI  float64 `json:"rssi"`
		} `json:"signal"`
	} `json:"device"`
}

// Read shells out to ubus and maps its JSON response onto a
// Measurement. Returns (nil, err) on any failure so the Acquirer falls
// through to the next configured source.
func (UbusSource) Read(ctx context.Context) (*cellular.Measurement, error) {
	cmd := exec.CommandContext(ctx, "ubus", "call", "mobiled", "status")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ingest: ubus call failed: %w", err)
	}

	var status mobiledStatus
	if err := json.Unmarshal(output, &status); err != nil {
		return nil, fmt.Errorf("ingest: parse ubus response: %w", err)
	}
	net := status.Device.Network
	if net.MCC == "" || net.MNC == "" || net.CellID == "" {
		return nil, fmt.Errorf("ingest: incomplete ubus response")
	}

	rsrp := status.Device.Signal.RSRP
	rsrq := status.Device.Signal.RSRQ
	sinr := status.Device.Signal.SINR
	pci := net.PCI
	arfcn := net.ARFCN

	m := &cellular.Measurement{
		Timestamp: time.Now(),
		Tower: cellular.Tower{
			CellID: net.CellID,
			LAC:    net.LAC,
			MCC:    net.MCC,
			MNC:    net.MNC,
			Technology: mapTechnology(net.Technology),
		},
		SignalStrength: int(status.Device.Signal.RSSI),
		Technology:     mapTechnology(net.Technology),
		Encryption:     cellular.EncUnknown,
		ServingTower:   true,
		Advanced: &cellular.AdvancedFields{
			RSRP:  &rsrp,
			RSRQ:  &rsrq,
			SINR:  &sinr,
			PCI:   &pci,
			ARFCN: &arfcn,
		},
	}
	return m, nil
}

func mapTechnology(tech string) cellular.TechTag {
	switch tech {
	case "5g", "nr":
		return cellular.Tech5G
	case "lte", "4g":
		return cellular.TechLTE
	case "umts", "3g":
		return cellular.Tech3G
	case "gsm", "2g":
		return cellular.TechGSM
	default:
		return cellular.TechUnknown
	}
}
