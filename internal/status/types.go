package status

// Data is the template model for the status page.
type Data struct {
	Role       string
	Version    uint16
	ServerTime string
	Listen     string

	Status        string // client role only
	PlayersOnline int
	Course        string
	Hole          int

	Slots []Slot
}

type Slot struct {
	Index  int    `json:"slot"`
	Active bool   `json:"active"`
	Name   string `json:"name"`
}
