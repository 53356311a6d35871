package consensus

import (
	"math"
	"sort"

	"github.com/sells-group/lead-consensus/internal/model"
)

// z for a two-sided 95% interval.
const z95 = 1.959963984540054

// Item is one rated subject: category -> number of raters choosing it.
type Item map[string]int

func (it Item) raters() int {
	n := 0
	for _, c := range it {
		n += c
	}
	return n
}

// FleissKappa computes Fleiss' kappa over items with pooled category
// marginals. Items with fewer than two raters are ignored; with two raters
// the estimate equals Scott's pi. An estimate over unanimous items is
// exactly 1. The standard error is the Fleiss-Nee-Landis null variance
// using the mean number of raters per item.
func FleissKappa(items []Item) model.Agreement {
	var (
		used        []Item
		totalRaters int
	)
	for _, it := range items {
		if n := it.raters(); n >= 2 {
			used = append(used, it)
			totalRaters += n
		}
	}
	if len(used) == 0 {
		return model.Agreement{Interpretation: InterpretUndefined}
	}

	m := float64(len(used))
	nBar := float64(totalRaters) / m

	marginals := make(map[string]float64)
	var (
		sumP      float64
		unanimous = true
	)
	for _, it := range used {
		n := float64(it.raters())
		var agree float64
		for cat, c := range it {
			cf := float64(c)
			agree += cf * (cf - 1)
			marginals[cat] += cf
		}
		if len(nonZero(it)) > 1 {
			unanimous = false
		}
		sumP += agree / (n * (n - 1))
	}
	pBar := sumP / m

	// Sorted so floating point sums are reproducible.
	cats := make([]string, 0, len(marginals))
	for c := range marginals {
		cats = append(cats, c)
	}
	sort.Strings(cats)

	var pe, sumPQ, sumPQQP float64
	for _, c := range cats {
		p := marginals[c] / float64(totalRaters)
		q := 1 - p
		pe += p * p
		sumPQ += p * q
		sumPQQP += p * q * (q - p)
	}

	a := model.Agreement{
		Defined: true,
		Items:   len(used),
		Raters:  nBar,
	}

	if unanimous || pe >= 1 {
		a.Kappa = 1
	} else {
		a.Kappa = (pBar - pe) / (1 - pe)
	}

	radicand := sumPQ*sumPQ - sumPQQP
	if sumPQ > 0 && radicand > 0 && nBar > 1 {
		a.StdErr = math.Sqrt2 / (sumPQ * math.Sqrt(m*nBar*(nBar-1))) * math.Sqrt(radicand)
	}

	if a.StdErr > 0 {
		a.CILower = math.Max(-1, a.Kappa-z95*a.StdErr)
		a.CIUpper = math.Min(1, a.Kappa+z95*a.StdErr)
		a.PValue = math.Erfc(math.Abs(a.Kappa/a.StdErr) / math.Sqrt2)
	} else {
		a.CILower = a.Kappa
		a.CIUpper = a.Kappa
		a.PValue = 1
	}

	a.Interpretation = Interpret(a.Kappa)
	return a
}

// FreeMarginalKappa computes the free-marginal multirater kappa for one
// item: (Po - 1/k) / (1 - 1/k), where Po is the observed pairwise agreement
// and k the number of categories raters could choose from (at least 2). It
// rates a single subject, where Fleiss' kappa cannot exceed 0 unless the
// raters are unanimous. No standard error is estimated.
func FreeMarginalKappa(it Item, categories int) model.Agreement {
	n := it.raters()
	if n < 2 {
		return model.Agreement{Interpretation: InterpretUndefined}
	}
	if categories < 2 {
		categories = 2
	}

	var agree float64
	for _, c := range it {
		cf := float64(c)
		agree += cf * (cf - 1)
	}
	nf := float64(n)
	po := agree / (nf * (nf - 1))
	pe := 1 / float64(categories)

	a := model.Agreement{
		Defined: true,
		Items:   1,
		Raters:  nf,
		Kappa:   (po - pe) / (1 - pe),
		PValue:  1,
	}
	if len(nonZero(it)) == 1 {
		a.Kappa = 1
	}
	a.CILower = a.Kappa
	a.CIUpper = a.Kappa
	a.Interpretation = Interpret(a.Kappa)
	return a
}

func nonZero(it Item) []string {
	var out []string
	for c, n := range it {
		if n > 0 {
			out = append(out, c)
		}
	}
	return out
}

// Agreement bands.
const (
	InterpretUndefined = "Undefined"
	InterpretPoor      = "Poor"
	InterpretFair      = "Fair"
	InterpretModerate  = "Moderate"
	InterpretGood      = "Good"
	InterpretVeryGood  = "Very Good"
)

// Interpret maps a kappa value to its agreement band.
func Interpret(kappa float64) string {
	switch {
	case kappa < 0.2:
		return InterpretPoor
	case kappa < 0.4:
		return InterpretFair
	case kappa < 0.6:
		return InterpretModerate
	case kappa < 0.8:
		return InterpretGood
	default:
		return InterpretVeryGood
	}
}
