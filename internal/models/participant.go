package models

// ParticipantEndpoint identifies one registered participant agent. Process
// lifecycle for locally spawned participants is managed by the scenario
// runner; dispatch only needs the role and address.
type ParticipantEndpoint struct {
	Role    string `json:"role" yaml:"role"`
	Address string `json:"address" yaml:"endpoint"`
}
