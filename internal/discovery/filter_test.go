package discovery

import (
	"reflect"
	"testing"
)

func TestFilter_FilterByName(t *testing.T) {
	files := []string{
		"tests/Unit/UserTest.php",
		"tests/Unit/UserServiceTest.php",
		"tests/Feature/PaymentTest.php",
		"tests/Feature/PaymentServiceTest.php",
		"tests/Feature/ServicePaymentTest.php",
		"tests/Feature/OrderTest.php",
	}

	tests := []struct {
		name    string
		pattern string
		want    []string
	}{
		{"empty pattern keeps everything", "  ", files},
		{"glob on the base name", "*UserTest.php", []string{"tests/Unit/UserTest.php"}},
		{"plain substring", "Order", []string{"tests/Feature/OrderTest.php"}},
		{
			"fragments in order",
			"*Payment*Service*",
			[]string{"tests/Feature/PaymentServiceTest.php"},
		},
		{
			"alternatives",
			"UserService, *Order*",
			[]string{"tests/Unit/UserServiceTest.php", "tests/Feature/OrderTest.php"},
		},
		{"directory names do not match", "Feature", nil},
		{"no match", "*Invoice*", nil},
	}

	filter := NewFilter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := filter.FilterByName(files, tt.pattern)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestMatchName(t *testing.T) {
	tests := []struct {
		name, pattern string
		want          bool
	}{
		{"UserTest.php", "User?est.php", true},
		{"UserTest.php", "Usr?Test.php", false},
		{"UserServiceTest.php", "*User*Test.php", true},
		{"UserTest.php", "*", true},
		{"UserTest.php", "user", false},
	}
	for _, tt := range tests {
		if got := matchName(tt.name, tt.pattern); got != tt.want {
			t.Errorf("matchName(%q, %q): expected %v, got %v", tt.name, tt.pattern, tt.want, got)
		}
	}
}
