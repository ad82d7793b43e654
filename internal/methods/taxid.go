package methods

import "github.com/brisastore/checkout/internal/domain"

// Brazilian tax ids carry two check digits computed by weighted modulo-11
// schemes: CPF for natural persons (11 digits), CNPJ for companies (14).

func digitsOf(s string) []int {
	out := make([]int, 0, len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			out = append(out, int(r-'0'))
		}
	}
	return out
}

func allSame(d []int) bool {
	for _, v := range d[1:] {
		if v != d[0] {
			return false
		}
	}
	return true
}

// ValidCPF accepts formatted ("111.444.777-35") or bare input.
func ValidCPF(s string) bool {
	d := digitsOf(s)
	if len(d) != 11 || allSame(d) {
		return false
	}

	for _, pos := range []int{9, 10} {
		sum := 0
		for i := 0; i < pos; i++ {
			sum += d[i] * (pos + 1 - i)
		}
		check := sum * 10 % 11
		if check == 10 {
			check = 0
		}
		if check != d[pos] {
			return false
		}
	}
	return true
}

var cnpjWeights = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}

// ValidCNPJ accepts formatted ("11.222.333/0001-81") or bare input.
func ValidCNPJ(s string) bool {
	d := digitsOf(s)
	if len(d) != 14 || allSame(d) {
		return false
	}

	for _, pos := range []int{12, 13} {
		weights := cnpjWeights[len(cnpjWeights)-pos:]
		sum := 0
		for i := 0; i < pos; i++ {
			sum += d[i] * weights[i]
		}
		check := 11 - sum%11
		if check >= 10 {
			check = 0
		}
		if check != d[pos] {
			return false
		}
	}
	return true
}

// ValidTaxID dispatches on the declared identification type.
func ValidTaxID(id domain.Identification) bool {
	switch id.Type {
	case domain.TaxIDCPF:
		return ValidCPF(id.Number)
	case domain.TaxIDCNPJ:
		return ValidCNPJ(id.Number)
	}
	return false
}
