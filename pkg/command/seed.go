package command

import "alerthub/pkg/protocol"

// SeedEvents returns the five demo events in creation order.
func SeedEvents() []protocol.CreateEventRequest {
	return []protocol.CreateEventRequest{
		{Source: "sensor-a", Severity: protocol.SeverityInfo, Message: "Heartbeat OK — todos los servicios operativos"},
		{Source: "router-core", Severity: protocol.SeverityWarning, Message: "Latencia elevada detectada en interfaz eth0"},
		{Source: "switch-planta2", Severity: protocol.SeverityError, Message: "Pérdida de paquetes superior al 15% durante 30s"},
		{Source: "firewall-dmz", Severity: protocol.SeverityCritical, Message: "Intento de acceso no autorizado desde IP externa"},
		{Source: "sensor-b", Severity: protocol.SeverityInfo, Message: "Certificado SSL renovado correctamente"},
	}
}
