package recognition_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"cardscope/models"
	"cardscope/pkg/catalog"
	"cardscope/pkg/logging"
	"cardscope/pkg/ocr"
	"cardscope/pkg/recognition"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

var _ = Describe("Scanner", func() {
	var (
		ctx        context.Context
		normalizer *MockNormalizer
		extractor  *MockExtractor
		uploader   *MockUploader
		external   *MockExternal
		scanner    *recognition.Scanner
	)

	BeforeEach(func() {
		ctx = context.Background()
		normalizer = &MockNormalizer{}
		extractor = &MockExtractor{}
		uploader = &MockUploader{url: "https://cards.s3.us-east-1.amazonaws.com/scans/x.png"}
		external = &MockExternal{byGame: map[string]*catalog.ExternalCardData{
			catalog.GameYugioh: {Game: catalog.GameYugioh, Price: catalog.Optional("25.00")},
		}}
		refs := &MockReferences{ref: &models.CardReference{
			Game: catalog.GameYugioh, SetCode: "LOB", CardNumber: "001", Name: "Blue-Eyes White Dragon",
		}}
		engine := recognition.NewEngine(refs, external, logging.NewNop())
		scanner = recognition.NewScanner(normalizer, extractor, engine, uploader, logging.NewNop())
	})

	It("returns the decode error and never a result", func() {
		normalizer.err = fmt.Errorf("%w: bad bytes", ocr.ErrDecode)
		res, err := scanner.Scan(ctx, []byte("garbage"))
		Expect(errors.Is(err, ocr.ErrDecode)).To(BeTrue())
		Expect(res).To(BeNil())
		Expect(uploader.keys).To(BeEmpty())
	})

	It("surfaces OCR engine failures", func() {
		extractor.fullErr = fmt.Errorf("%w: engine", ocr.ErrRecognition)
		_, err := scanner.Scan(ctx, pngHeader)
		Expect(errors.Is(err, ocr.ErrRecognition)).To(BeTrue())
	})

	It("normalizes the code text and resolves against the reference table", func() {
		extractor.full = "Blue-Eyes White Dragon\nDRAGON"
		extractor.code = "lob–001 ultra rare\n"
		res, err := scanner.Scan(ctx, pngHeader)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.ScanMethod).To(Equal(recognition.MethodCode))
		Expect(res.Confidence).To(Equal(1.0))
		Expect(*res.CardData.Price).To(Equal("25.00"))
		Expect(res.CardData.ImagePath).To(Equal(uploader.url))
	})

	It("stores the image under a uuid key with its detected type", func() {
		extractor.full = "Pikachu"
		_, err := scanner.Scan(ctx, pngHeader)
		Expect(err).NotTo(HaveOccurred())
		Expect(uploader.keys).To(HaveLen(1))
		Expect(uploader.keys[0]).To(MatchRegexp(`^scans/[0-9a-f-]{36}\.png$`))
		Expect(uploader.contentType).To(Equal("image/png"))
	})

	It("omits image_path when the upload fails", func() {
		uploader.err = errors.New("access denied")
		extractor.full = "Pikachu"
		res, err := scanner.Scan(ctx, pngHeader)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.ScanMethod).To(Equal(recognition.MethodVisual))
		Expect(res.CardData.ImagePath).To(BeEmpty())

		raw, err := json.Marshal(res)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(raw)).NotTo(ContainSubstring("image_path"))
	})

	It("serializes a manual result with null card data", func() {
		res, err := scanner.Scan(ctx, pngHeader)
		Expect(err).NotTo(HaveOccurred())
		raw, err := json.Marshal(res)
		Expect(err).NotTo(HaveOccurred())
		Expect(raw).To(MatchJSON(`{"scan_method":"manual","confidence":0,"requires_confirmation":true,"card_data":null}`))
	})

	It("works without an uploader", func() {
		s := recognition.NewScanner(normalizer, &MockExtractor{full: "Pikachu"}, recognition.NewEngine(nil, nil, nil), nil, logging.NewNop())
		res, err := s.Scan(ctx, pngHeader)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.CardData.ImagePath).To(BeEmpty())
	})
})
