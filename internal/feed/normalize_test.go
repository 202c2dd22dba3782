package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   string
		kind   Kind
		family Family
		masked bool
	}{
		{"ipv4 address", "10.0.0.5", "10.0.0.5", KindAddress, V4, false},
		{"surrounding whitespace", "  10.0.0.5\t", "10.0.0.5", KindAddress, V4, false},
		{"host prefix", "10.0.0.5/32", "10.0.0.5", KindAddress, V4, false},
		{"ipv4 cidr", "10.0.0.0/24", "10.0.0.0/24", KindCIDR, V4, false},
		{"host bits masked", "10.0.0.7/24", "10.0.0.0/24", KindCIDR, V4, true},
		{"default route", "0.0.0.0/0", "0.0.0.0/0", KindCIDR, V4, false},
		{"aligned range", "10.0.0.0-10.0.0.255", "10.0.0.0/24", KindCIDR, V4, false},
		{"spaced range", "10.0.0.1 - 10.0.0.9", "10.0.0.1-10.0.0.9", KindRange, V4, false},
		{"single address range", "10.0.0.5-10.0.0.5", "10.0.0.5", KindAddress, V4, false},
		{"ipv6 lowercased", "2001:DB8::1", "2001:db8::1", KindAddress, V6, false},
		{"ipv6 expanded", "2001:0db8:0000:0000:0000:0000:0000:0001", "2001:db8::1", KindAddress, V6, false},
		{"ipv6 cidr", "2001:db8::/32", "2001:db8::/32", KindCIDR, V6, false},
		{"ipv6 masked", "2001:db8::1/64", "2001:db8::/64", KindCIDR, V6, true},
		{"ipv6 host prefix", "2001:db8::1/128", "2001:db8::1", KindAddress, V6, false},
		{"ipv6 everything", "::/0", "::/0", KindCIDR, V6, false},
		{"ipv6 range", "2001:db8::1-2001:db8::ff", "2001:db8::1-2001:db8::ff", KindRange, V6, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := Normalize(tt.raw, FamilyAny)
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.String())
			assert.Equal(t, tt.kind, e.Kind)
			assert.Equal(t, tt.family, e.Family)
			assert.Equal(t, tt.masked, e.Masked)
			assert.Equal(t, tt.raw, e.Original)

			again, err := Normalize(e.String(), FamilyAny)
			require.NoError(t, err)
			assert.True(t, e.Equal(again), "normalize is not idempotent for %q", tt.raw)
			assert.Equal(t, e.String(), again.String())
		})
	}
}

func TestNormalize_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"octet overflow", "10.0.0.256"},
		{"leading zero octet", "010.0.0.1"},
		{"short address", "10.0.0"},
		{"prefix too long v4", "10.0.0.0/33"},
		{"prefix too long v6", "2001:db8::/129"},
		{"missing prefix", "10.0.0.0/"},
		{"non numeric prefix", "1.2.3.4/abc"},
		{"zone", "fe80::1%eth0"},
		{"zone in cidr", "fe80::1%eth0/64"},
		{"mixed family range", "10.0.0.1-::1"},
		{"reversed range", "192.168.1.10-192.168.1.5"},
		{"open range", "-10.0.0.1"},
		{"bad v6 group", "2001:db8::zzzz"},
		{"garbage", "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.raw, FamilyAny)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidFormat)

			var fe *FormatError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.raw, fe.Raw)
			assert.NotEmpty(t, fe.Reason)
		})
	}
}

func TestNormalize_FamilyHint(t *testing.T) {
	_, err := Normalize("10.0.0.1", V6)
	assert.ErrorIs(t, err, ErrInvalidFormat)

	_, err = Normalize("2001:db8::1", V4)
	assert.ErrorIs(t, err, ErrInvalidFormat)

	e, err := Normalize("2001:db8::1", V6)
	require.NoError(t, err)
	assert.Equal(t, V6, e.Family)
}

func TestNormalizeAll(t *testing.T) {
	entries, err := NormalizeAll([]RawEntry{
		{Text: "10.0.0.1", Comment: " scanner "},
		{Text: "2001:db8::/48"},
	})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "scanner", entries[0].Comment)

	_, err = NormalizeAll([]RawEntry{
		{Text: "10.0.0.1"},
		{Text: "192.168.1.10-192.168.1.5"},
		{Text: "10.0.0.2"},
	})
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "192.168.1.10-192.168.1.5", fe.Raw)
}

func TestEntry_ContainsOverlaps(t *testing.T) {
	net := MustNormalize("10.0.0.0/24")
	host := MustNormalize("10.0.0.9")
	span := MustNormalize("10.0.0.200-10.0.1.5")
	other := MustNormalize("2001:db8::/32")

	assert.True(t, net.Contains(host))
	assert.False(t, host.Contains(net))
	assert.False(t, net.Contains(span))
	assert.True(t, net.Overlaps(span))
	assert.False(t, net.Overlaps(other))
	assert.Equal(t, "10.0.0.200-10.0.1.5", span.IPRange().String())
}

func TestParseFamily(t *testing.T) {
	for in, want := range map[string]Family{"": FamilyAny, "ipv4": V4, "V6": V6, "4": V4} {
		got, err := ParseFamily(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFamily("ipx")
	assert.Error(t, err)
}
