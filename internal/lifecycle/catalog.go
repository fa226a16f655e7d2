package lifecycle

// Assignment maps one bookable service to the doctor who handles it.
type Assignment struct {
	Service string `yaml:"service" json:"service"`
	Doctor  string `yaml:"doctor" json:"doctor"`
}

// DefaultAssignments is the table the clinic site shipped with.
func DefaultAssignments() []Assignment {
	return []Assignment{
		{Service: "Skin Care", Doctor: "Dr. Meenakshi Chauhan"},
		{Service: "Arthritis", Doctor: "Dr. Rohit Sharma"},
		{Service: "Diabetes Management", Doctor: "Dr. Rohit Sharma"},
		{Service: "Weight Loss", Doctor: "Dr. Meenakshi Chauhan"},
		{Service: "Women's Health", Doctor: "Dr. Meenakshi Chauhan"},
		{Service: "Chronic Pain", Doctor: "Dr. Rohit Sharma"},
	}
}

// Catalog is the service to doctor lookup. It is read-only after
// construction and safe for concurrent use.
type Catalog struct {
	services []string
	doctors  map[string]string
}

// NewCatalog builds a catalog; later duplicates of a service win.
func NewCatalog(assignments []Assignment) *Catalog {
	c := &Catalog{doctors: make(map[string]string, len(assignments))}
	for _, a := range assignments {
		if a.Service == "" {
			continue
		}
		if _, seen := c.doctors[a.Service]; !seen {
			c.services = append(c.services, a.Service)
		}
		c.doctors[a.Service] = a.Doctor
	}
	return c
}

// DefaultCatalog returns NewCatalog(DefaultAssignments()).
func DefaultCatalog() *Catalog {
	return NewCatalog(DefaultAssignments())
}

// Resolve returns the doctor mapped to service, or "" when there is none.
// An empty result is still submitted by Book; the server decides.
func (c *Catalog) Resolve(service string) string {
	return c.doctors[service]
}

// Lookup is Resolve with an explicit found flag.
func (c *Catalog) Lookup(service string) (string, bool) {
	d, ok := c.doctors[service]
	return d, ok
}

// Services lists services in table order.
func (c *Catalog) Services() []string {
	out := make([]string, len(c.services))
	copy(out, c.services)
	return out
}

// Doctors lists the distinct doctor names in first-seen order.
func (c *Catalog) Doctors() []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range c.services {
		d := c.doctors[s]
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}
