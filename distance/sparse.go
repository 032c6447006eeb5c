package distance

import "math"

// mergeWalk visits the union of the non-zero coordinates of a and b in
// increasing index order, passing the two values (zero where absent).
func mergeWalk(ai []int, av []float32, bi []int, bv []float32, fn func(x, y float32)) {
	i, j := 0, 0
	for i < len(ai) && j < len(bi) {
		switch {
		case ai[i] == bi[j]:
			fn(av[i], bv[j])
			i++
			j++
		case ai[i] < bi[j]:
			fn(av[i], 0)
			i++
		default:
			fn(0, bv[j])
			j++
		}
	}
	for ; i < len(ai); i++ {
		fn(av[i], 0)
	}
	for ; j < len(bi); j++ {
		fn(0, bv[j])
	}
}

func sparseDot(ai []int, av []float32, bi []int, bv []float32) float32 {
	var dot float32
	i, j := 0, 0
	for i < len(ai) && j < len(bi) {
		switch {
		case ai[i] == bi[j]:
			dot += av[i] * bv[j]
			i++
			j++
		case ai[i] < bi[j]:
			i++
		default:
			j++
		}
	}
	return dot
}

func sparseNorm(v []float32) float32 {
	var s float32
	for _, x := range v {
		s += x * x
	}
	return float32(math.Sqrt(float64(s)))
}

func sparseCosine(ai []int, av []float32, bi []int, bv []float32) float32 {
	na, nb := sparseNorm(av), sparseNorm(bv)
	if na == 0 || nb == 0 {
		return 1
	}
	return max(0, 1-sparseDot(ai, av, bi, bv)/(na*nb))
}

func sparseSqEuclidean(ai []int, av []float32, bi []int, bv []float32) float32 {
	var s float32
	mergeWalk(ai, av, bi, bv, func(x, y float32) {
		d := x - y
		s += d * d
	})
	return s
}

func sparseEuclidean(ai []int, av []float32, bi []int, bv []float32) float32 {
	return float32(math.Sqrt(float64(sparseSqEuclidean(ai, av, bi, bv))))
}

func sparseCityblock(ai []int, av []float32, bi []int, bv []float32) float32 {
	var s float32
	mergeWalk(ai, av, bi, bv, func(x, y float32) {
		s += float32(math.Abs(float64(x - y)))
	})
	return s
}

func sparseChebyshev(ai []int, av []float32, bi []int, bv []float32) float32 {
	var m float32
	mergeWalk(ai, av, bi, bv, func(x, y float32) {
		if d := float32(math.Abs(float64(x - y))); d > m {
			m = d
		}
	})
	return m
}
