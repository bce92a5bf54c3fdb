package model

// NodeRole distinguishes orbiting nodes from fixed ground stations.
type NodeRole int

const (
	RoleUnknown NodeRole = iota
	RoleSatellite
	RoleGroundStation
)

func (r NodeRole) String() string {
	switch r {
	case RoleSatellite:
		return "satellite"
	case RoleGroundStation:
		return "ground"
	default:
		return "unknown"
	}
}
