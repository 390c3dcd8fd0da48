package stableid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntityDeterministic(t *testing.T) {
	a := Entity("swift", "AppModule", "Greeter")
	b := Entity("swift", "AppModule", "Greeter")
	assert.Equal(t, a, b)
	assert.Len(t, a, 40)
}

func TestEntityInjective(t *testing.T) {
	a := Entity("swift", "AppModule", "Greeter")
	b := Entity("swift", "AppModule", "Farewell")
	c := Entity("swift", "OtherModule", "Greeter")
	d := Entity("objc", "AppModule", "Greeter")
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
}

func TestExtensionCoexistence(t *testing.T) {
	a := Extension("swift", "AppModule", "Greeter", "Sources/A.swift", 10)
	b := Extension("swift", "AppModule", "Greeter", "Sources/B.swift", 10)
	assert.NotEqual(t, a, b)
}

func TestMemberIDShape(t *testing.T) {
	id := Member("abc123", "function", "greet")
	assert.Equal(t, "abc123:function:greet", id)
}
