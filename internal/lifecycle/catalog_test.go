package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveDefaultTable(t *testing.T) {
	c := DefaultCatalog()
	tests := map[string]string{
		"Skin Care":           "Dr. Meenakshi Chauhan",
		"Arthritis":           "Dr. Rohit Sharma",
		"Diabetes Management": "Dr. Rohit Sharma",
		"Weight Loss":         "Dr. Meenakshi Chauhan",
		"Women's Health":      "Dr. Meenakshi Chauhan",
		"Chronic Pain":        "Dr. Rohit Sharma",
	}
	for service, doctor := range tests {
		t.Run(service, func(t *testing.T) {
			assert.Equal(t, doctor, c.Resolve(service))
		})
	}
}

func TestResolveUnmappedIsEmpty(t *testing.T) {
	c := DefaultCatalog()

	assert.NotPanics(t, func() {
		assert.Equal(t, "", c.Resolve("Dental"))
		assert.Equal(t, "", c.Resolve(""))
	})
	_, ok := c.Lookup("Dental")
	assert.False(t, ok)
}

func TestCatalogFromConfigTable(t *testing.T) {
	c := NewCatalog([]Assignment{
		{Service: "Physio", Doctor: "Dr. A"},
		{Service: "Sleep", Doctor: "Dr. B"},
		{Service: "Physio", Doctor: "Dr. C"},
		{Service: "", Doctor: "Dr. Nobody"},
	})

	assert.Equal(t, []string{"Physio", "Sleep"}, c.Services())
	assert.Equal(t, "Dr. C", c.Resolve("Physio"))
	assert.Equal(t, []string{"Dr. C", "Dr. B"}, c.Doctors())
}

func TestServicesReturnsCopy(t *testing.T) {
	c := DefaultCatalog()
	s := c.Services()
	s[0] = "mutated"
	assert.Equal(t, "Skin Care", c.Services()[0])
}
